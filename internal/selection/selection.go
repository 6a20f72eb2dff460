// Package selection carries page filters in the query string. Each group holds
// at most one id; choosing the selected id again clears it.
package selection

import (
	"net/url"
	"sort"
	"strings"
)

type Group string

const (
	GroupCourse     Group = "course"
	GroupStudent    Group = "student"
	GroupClass      Group = "class"
	GroupAssignment Group = "assignment"
)

const closedParam = "closed"

// dependents are cleared whenever their parent group changes.
var dependents = map[Group][]Group{
	GroupCourse:  {GroupAssignment},
	GroupClass:   {GroupStudent},
	GroupStudent: {GroupAssignment},
}

// Toggle is the next id for a group whose current id is current.
func Toggle(current, id string) string {
	if current == id {
		return ""
	}
	return id
}

type Selection struct {
	values url.Values
}

func FromQuery(query url.Values) Selection {
	values := url.Values{}
	for key, vals := range query {
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				values.Add(key, v)
			}
		}
	}
	return Selection{values: values}
}

func (s Selection) clone() Selection {
	values := url.Values{}
	for key, vals := range s.values {
		values[key] = append([]string(nil), vals...)
	}
	return Selection{values: values}
}

func (s Selection) Get(g Group) string {
	return s.values.Get(string(g))
}

func (s Selection) Selected(g Group, id string) bool {
	return id != "" && s.Get(g) == id
}

func (s Selection) Toggle(g Group, id string) Selection {
	next := s.clone()
	if value := Toggle(s.Get(g), id); value == "" {
		next.values.Del(string(g))
	} else {
		next.values.Set(string(g), value)
	}
	for _, dep := range dependents[g] {
		next.values.Del(string(dep))
	}
	return next
}

func (s Selection) Without(g Group) Selection {
	next := s.clone()
	next.values.Del(string(g))
	return next
}

func (s Selection) Search() string {
	return s.values.Get("q")
}

// Closed reports a collapsed summary section.
func (s Selection) Closed(section string) bool {
	for _, key := range s.closed() {
		if key == section {
			return true
		}
	}
	return false
}

func (s Selection) closed() []string {
	var keys []string
	for _, raw := range s.values[closedParam] {
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				keys = append(keys, key)
			}
		}
	}
	return keys
}

func (s Selection) ToggleSection(section string) Selection {
	next := s.clone()
	keys := s.closed()
	out := keys[:0:0]
	found := false
	for _, key := range keys {
		if key == section {
			found = true
			continue
		}
		out = append(out, key)
	}
	if !found {
		out = append(out, section)
	}
	sort.Strings(out)
	next.values.Del(closedParam)
	if len(out) > 0 {
		next.values.Set(closedParam, strings.Join(out, ","))
	}
	return next
}

func (s Selection) URL(path string) string {
	if len(s.values) == 0 {
		return path
	}
	return path + "?" + s.values.Encode()
}

type Item struct {
	ID    string
	Label string
}

type Option struct {
	ID       string
	Label    string
	Selected bool
	Href     string
}

// Options renders a filter group as toggle links for the page at path.
func (s Selection) Options(path string, g Group, items []Item) []Option {
	options := make([]Option, 0, len(items))
	for _, item := range items {
		options = append(options, Option{
			ID:       item.ID,
			Label:    item.Label,
			Selected: s.Selected(g, item.ID),
			Href:     s.Toggle(g, item.ID).URL(path),
		})
	}
	return options
}
