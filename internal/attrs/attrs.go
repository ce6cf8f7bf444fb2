// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package attrs parses the --attrs flag: which fields of a result row to show,
// under which column name, and how to transform their values.
package attrs

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
)

// Attr is one column of output.
type Attr struct {
	// Key is the gjson path of the value within a result row.
	Key string `yaml:"key"`
	// Include is false for attrs that only exist to be filtered or sorted on.
	Include bool `yaml:"include"`
	// OutputKey names the column. It is also what --filter and --sort refer
	// to.
	OutputKey string `yaml:"outputKey"`
	// TransformSpec is a string of transformation flags, see Transform.
	TransformSpec string `yaml:"transformSpec"`
}

var lengthRe = regexp.MustCompile(`-?\d+`)

// Transform applies the attr's TransformSpec to value. The spec is made of
// flags, later ones winning over earlier ones:
//
//	t  RFC3339 time in the TDCTL_TZ (or TZ) location
//	h  human friendly: relative times, thousands separators
//	l  lower case
//	u  upper case
//	N  truncate to N characters; -N elides the middle instead
func (a *Attr) Transform(value any) any {
	if a.TransformSpec == "" {
		return value
	}

	if strings.Contains(a.TransformSpec, "h") {
		if n, ok := value.(float64); ok {
			return humanize.Comma(int64(n))
		}
	}

	result, ok := value.(string)
	if !ok {
		return value
	}

	if strings.ContainsAny(a.TransformSpec, "tT") {
		result = localTime(result)
	}

	if strings.Contains(a.TransformSpec, "h") {
		if t, err := time.Parse(time.RFC3339, result); err == nil {
			result = humanize.Time(t)
		}
	}

	lastL := strings.LastIndexAny(a.TransformSpec, "lL")
	lastU := strings.LastIndexAny(a.TransformSpec, "uU")
	switch {
	case lastL > lastU:
		result = strings.ToLower(result)
	case lastU > lastL:
		result = strings.ToUpper(result)
	}

	if match := lengthRe.FindAllString(a.TransformSpec, -1); len(match) != 0 {
		l, _ := strconv.Atoi(match[len(match)-1])
		result = truncate(result, l)
	}

	return result
}

// localTime converts an RFC3339 UTC timestamp into the configured zone. With
// no zone configured the value is returned as is.
func localTime(value string) string {
	tz := os.Getenv("TDCTL_TZ")
	if tz == "" {
		tz = os.Getenv("TZ")
	}
	if tz == "" {
		return value
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Warnf("unknown timezone %s", tz)
		return value
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return t.In(loc).Format("2006-01-02T15:04:05MST")
}

func truncate(s string, l int) string {
	abs := l
	if abs < 0 {
		abs = -abs
	}
	if len(s) <= abs {
		return s
	}
	if l >= 0 {
		return s[:l]
	}

	half := abs/2 - 1
	if half < 1 {
		return s[:abs]
	}
	return s[:half] + ".." + s[len(s)-half:]
}

type AttrList []Attr

// String renders the list in --attrs syntax.
func (a *AttrList) String() string {
	result := make([]string, 0, len(*a))
	for _, attr := range *a {
		result = append(result, fmt.Sprintf("%s:%s:%s", attr.Key, attr.OutputKey, attr.TransformSpec))
	}
	return strings.Join(result, ",")
}

// Set parses a comma separated list of key[:output[:transform]] specs and adds
// them to the list. A key prefixed with ! is hidden; the key * carries a
// transform applied to every attr. Respecifying an existing key updates it
// in place.
func (a *AttrList) Set(value string) error {
	if value == "" || value == "*" {
		return nil
	}

specs:
	for _, spec := range strings.Split(value, ",") {
		fields := strings.Split(spec, ":")
		if len(fields) > 3 {
			return fmt.Errorf("invalid attr spec %q", spec)
		}

		attr := Attr{Include: true, Key: strings.TrimSpace(fields[0])}
		if strings.HasPrefix(attr.Key, "!") {
			attr.Include = false
			attr.Key = attr.Key[1:]
		}
		if attr.Key == "" {
			return fmt.Errorf("invalid attr spec %q: empty key", spec)
		}
		if attr.Key == "*" {
			attr.Include = false
		}

		attr.OutputKey = attr.Key
		if i := strings.LastIndex(attr.Key, "."); i >= 0 {
			attr.OutputKey = attr.Key[i+1:]
		}
		if len(fields) > 1 && strings.TrimSpace(fields[1]) != "" {
			attr.OutputKey = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			attr.TransformSpec = strings.TrimSpace(fields[2])
		}

		for i := range *a {
			existing := &(*a)[i]
			if existing.Key == attr.Key || existing.OutputKey == attr.Key {
				existing.Include = attr.Include
				existing.OutputKey = attr.OutputKey
				existing.TransformSpec = attr.TransformSpec
				continue specs
			}
		}

		*a = append(*a, attr)
	}

	return nil
}

// SetGlobalTransformSpec prepends the transform of the * attr, if any, to
// every attr so that attr specific flags still win.
func (a *AttrList) SetGlobalTransformSpec() error {
	spec := ""
	for _, attr := range *a {
		if attr.Key == "*" {
			spec = attr.TransformSpec
			break
		}
	}

	if spec == "" {
		return nil
	}

	for i := range *a {
		(*a)[i].TransformSpec = spec + "," + (*a)[i].TransformSpec
	}

	return nil
}

func (a *AttrList) Type() string {
	return "list"
}
