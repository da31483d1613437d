package logging

import (
	"log/slog"
	"slices"
)

// groupedAttr is a handler attr with the groups open when it was added.
type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

// attrState accumulates WithAttrs/WithGroup calls for handlers that render
// attributes themselves.
type attrState struct {
	attrs  []groupedAttr
	groups []string
}

func (s attrState) withAttrs(attrs []slog.Attr) attrState {
	next := slices.Clip(s.attrs)
	for _, a := range attrs {
		next = append(next, groupedAttr{groups: s.groups, attr: a})
	}
	return attrState{attrs: next, groups: s.groups}
}

func (s attrState) withGroup(name string) attrState {
	if name == "" {
		return s
	}
	return attrState{attrs: s.attrs, groups: append(slices.Clip(s.groups), name)}
}

// each calls fn for the handler attrs, then the record attrs. A top-level
// module attribute is reported separately and never passed to fn.
func (s attrState) each(r slog.Record, fn func(groups []string, a slog.Attr)) (module string) {
	module = "app"
	visit := func(groups []string, a slog.Attr) {
		switch {
		case a.Key == "module" && len(groups) == 0:
			module = a.Value.String()
		case !a.Equal(slog.Attr{}):
			fn(groups, a)
		}
	}
	for _, ga := range s.attrs {
		visit(ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		visit(s.groups, a)
		return true
	})
	return module
}
