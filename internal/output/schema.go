// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/apex/log"
)

// Tag is an attribute discovered on a DTO, as listed by --schema.
type Tag struct {
	Name string
	Type string
}

// NewTag builds a Tag from a json struct tag. holder prefixes the name for
// nested structs. Fields the API never sends ("-") yield the zero Tag.
func NewTag(holder string, jsonTag string, typ reflect.Type) Tag {
	name, _, _ := strings.Cut(jsonTag, ",")
	if name == "" || name == "-" {
		return Tag{}
	}
	if holder != "" {
		name = holder + "." + name
	}
	return Tag{Name: name, Type: typeName(typ)}
}

// Print renders the tag the way --attrs expects it.
func (t Tag) Print() string {
	if t.Type == "" {
		return t.Name
	}
	return fmt.Sprintf("%-24s %s", t.Name, t.Type)
}

const maxSchemaDepth = 1

var timeType = reflect.TypeOf(time.Time{})

// DumpSchemaWalker collects the json attributes of typ, descending into
// nested structs up to maxSchemaDepth.
func DumpSchemaWalker(holder string, typ reflect.Type, depth int) []Tag {
	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return nil
	}

	tags := make([]Tag, 0, typ.NumField())

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)

		jsonTag, ok := field.Tag.Lookup("json")
		if !ok || !field.IsExported() {
			continue
		}

		tag := NewTag(holder, jsonTag, field.Type)
		if tag.Name == "" {
			continue
		}
		tags = append(tags, tag)

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}
		if depth < maxSchemaDepth && ft.Kind() == reflect.Struct && ft != timeType {
			tags = append(tags, DumpSchemaWalker(tag.Name, ft, depth+1)...)
		}
	}

	return tags
}

// DumpSchema prints a sorted list of attributes for typ.
func DumpSchema(w io.Writer, typ reflect.Type) {
	tags := DumpSchemaWalker("", typ, 0)
	if len(tags) == 0 {
		log.Debugf("No tags found for type: %s", typ.Name())
		return
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })

	for typ.Kind() == reflect.Ptr || typ.Kind() == reflect.Slice {
		typ = typ.Elem()
	}
	fmt.Fprintln(w, "Schema for", typ.Name(), "--")
	for _, tag := range tags {
		fmt.Fprintln(w, tag.Print())
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w,
		`Attributes that are directly available to the --attrs, --filter and --sort
flags. Use --output=raw to see the complete document.`)
}

func typeName(typ reflect.Type) string {
	optional := ""
	if typ.Kind() == reflect.Ptr {
		optional = "?"
		typ = typ.Elem()
	}

	switch {
	case typ == timeType:
		return "time" + optional
	case typ.Kind() == reflect.Slice && typ.Elem().Kind() == reflect.Uint8:
		return "json" + optional
	case typ.Kind() == reflect.Array && typ.Elem().Kind() == reflect.Uint8:
		return "uuid" + optional
	case typ.Kind() == reflect.Float64, typ.Kind() == reflect.Int64, typ.Kind() == reflect.Int:
		return "number" + optional
	}
	return typ.Kind().String() + optional
}
