package domain

import (
	"fmt"
	"strings"
)

const (
	PrefixFilter = "prefix"
	SuffixFilter = "suffix"
)

type FilterRule struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

func (f FilterRule) Validate() error {
	if f.Name != PrefixFilter && f.Name != SuffixFilter {
		return fmt.Errorf("expected FilterRule Name to be prefix or suffix but was %q", f.Name)
	}

	return nil
}

func (f FilterRule) FilterKey(key string) bool {
	switch f.Name {
	case PrefixFilter:
		return strings.HasPrefix(key, f.Value)
	case SuffixFilter:
		return strings.HasSuffix(key, f.Value)
	}

	return false
}

type Filter struct {
	Rules []FilterRule `yaml:"rules"`
}

func (f Filter) Validate() error {
	for _, rule := range f.Rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Matches reports whether every rule accepts the event key. A Filter
// without rules matches every event.
func (f Filter) Matches(event NotificationEvent) bool {
	for _, rule := range f.Rules {
		if !rule.FilterKey(event.Key) {
			return false
		}
	}

	return true
}
