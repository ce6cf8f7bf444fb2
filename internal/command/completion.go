// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/tdctl/internal/meta"
)

const bashCompletionScript = `# bash completion for tdctl
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_tdctl()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "bq ic iq ir iu oq wq completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t --tldr --schema --host -H --token --timeout"

    case "$cmd" in
        bq)
            local opts="$common --fulfill --unfulfill --send-email --delete --status"
            ;;
        ic|iu)
            local opts="$common --file -F"
            ;;
        iq)
            local opts="$common --watch -w --interval"
            ;;
        completion)
            local opts="bash zsh"
            COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
            return 0
            ;;
        --status)
            COMPREPLY=( $(compgen -W "all unfulfilled sent fulfilled" -- "$cur") )
            return 0
            ;;
        --file|-F)
            COMPREPLY=( $(compgen -f -- "$cur") )
            return 0
            ;;
    esac

    COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
    return 0
}

complete -F _tdctl tdctl
`

const zshCompletionScript = `#compdef tdctl

_tdctl() {
  local -a cmds
  cmds=(
    'bq:beta request query'
    'ic:insight create'
    'iq:insight query'
    'ir:insight remove'
    'iu:insight update'
    'oq:organization query'
    'wq:widgetable insight query'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-a --attrs)'{-a,--attrs}'[attributes to include]:attrs'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '(-s --sort)'{-s,--sort}'[sort attributes]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '(-H --host)'{-H,--host}'[API host]:host'
  '--token[API token]:token'
  '--timeout[request timeout]:duration'
  '--schema[dump schema]'
  '--tldr[show tldr page]'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'tdctl commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    bq)
      _arguments -C \
        $common \
        '--fulfill[mark fulfilled]:id' \
        '--unfulfill[mark not fulfilled]:id' \
        '--send-email[send invitation]:id' \
        '--delete[delete request]:id' \
        '--status[filter by status]:status:(all unfulfilled sent fulfilled)'
      ;;
    ic|iu)
      _arguments -C \
        $common \
        '(-F --file)'{-F,--file}'[insight JSON]:file:_files' \
        '*:id'
      ;;
    iq)
      _arguments -C \
        $common \
        '(-w --watch)'{-w,--watch}'[keep on screen]' \
        '--interval[redraw interval]:duration' \
        '*:id'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common '*:id'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _tdctl tdctl
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	if shell == "" {
		// Try to detect from SHELL
		sh := os.Getenv("SHELL")
		switch {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	w := writer(cmd)
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		fmt.Fprintln(errWriter(cmd), "usage: tdctl completion [bash|zsh]")
	}
	return nil
}

func CompletionCommandBuilder(meta meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "tdctl completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": meta,
		},
		Action: CompletionCommandAction,
	}
}
