package ontology

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/slugs"
)

// Resolve maps a classifier to a declared class URI. A URI must be declared
// as is. Anything else is matched against class ids, then against the slugs
// of class ids and labels; it must match exactly one class.
func (r *Registry) Resolve(classifier string) (string, error) {
	c := strings.TrimSpace(classifier)
	if c == "" {
		return "", errors.Wrap(ErrInvalidClassifier, "empty classifier")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if isURI(c) {
		if _, ok := r.classes[c]; ok {
			return c, nil
		}
		return "", errors.WithHint(
			errors.Wrapf(ErrInvalidClassifier, "no ontology declares %s", c),
			"run `sramp ontology list` to see declared classes")
	}

	if uri, err := r.unique(c, func(info *ClassInfo) bool { return info.ID == c }); uri != "" || err != nil {
		return uri, err
	}

	want := slugs.Component(c)
	uri, err := r.unique(c, func(info *ClassInfo) bool {
		return slugs.Component(info.ID) == want || (info.Label != "" && slugs.Component(info.Label) == want)
	})
	if err != nil {
		return "", err
	}
	if uri == "" {
		return "", errors.WithHint(
			errors.Wrapf(ErrInvalidClassifier, "unknown classifier %q", c),
			"run `sramp ontology list` to see declared classes")
	}
	return uri, nil
}

// unique returns the URI of the only class matching fn, "" when none match,
// or an error when several do.
func (r *Registry) unique(classifier string, fn func(*ClassInfo) bool) (string, error) {
	var matches []string
	for uri, info := range r.classes {
		if fn(info) {
			matches = append(matches, uri)
		}
	}
	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", errors.WithHintf(
			errors.Wrapf(ErrInvalidClassifier, "classifier %q is ambiguous", classifier),
			"use one of the full URIs: %s", strings.Join(matches, ", "))
	}
}

// Normalize expands a class URI to itself plus its ancestors, sorted.
func (r *Registry) Normalize(uri string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.classes[uri]
	if !ok {
		return nil, errors.Wrapf(ErrInvalidClassifier, "no ontology declares %s", uri)
	}

	var out []string
	for info != nil {
		out = append(out, info.URI)
		info = r.classes[info.ParentURI]
	}
	sort.Strings(out)
	return out, nil
}

// NormalizeAll resolves each classifier and returns the union of their
// normalized sets, sorted. The first failure aborts.
func (r *Registry) NormalizeAll(classifiers []string) ([]string, error) {
	seen := make(map[string]bool)
	for _, c := range classifiers {
		uri, err := r.Resolve(c)
		if err != nil {
			return nil, err
		}
		expanded, err := r.Normalize(uri)
		if err != nil {
			return nil, err
		}
		for _, u := range expanded {
			seen[u] = true
		}
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func isURI(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "urn:")
}
