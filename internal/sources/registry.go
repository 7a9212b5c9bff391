package sources

import (
	"fmt"
	"net/url"
)

// Descriptor describes one scrape target: where the listing page lives and
// which CSS selectors locate items and their fields. Immutable after load.
type Descriptor struct {
	Name           string
	URL            string
	BaseURL        string
	ItemSelector   string
	TitleSelector  string
	LinkSelector   string
	TimeSelector   string
	SourceSelector string
}

// Registry holds the validated, active set of descriptors in configured order.
type Registry struct {
	descriptors []Descriptor
}

// New validates each descriptor and builds the active set. A descriptor
// missing its listing URL or item/title/link selectors is excluded and
// reported; the remaining descriptors still form a usable registry.
func New(descs []Descriptor) (*Registry, []error) {
	var (
		accepted []Descriptor
		rejected []error
	)

	for _, d := range descs {
		if err := validate(d); err != nil {
			rejected = append(rejected, err)
			continue
		}
		if d.BaseURL == "" {
			d.BaseURL = origin(d.URL)
		}
		accepted = append(accepted, d)
	}

	return &Registry{descriptors: accepted}, rejected
}

// Sources returns the active descriptors in configured order.
func (r *Registry) Sources() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Len reports the number of active descriptors.
func (r *Registry) Len() int {
	return len(r.descriptors)
}

func validate(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("source with url %q has no name", d.URL)
	}
	if d.URL == "" {
		return fmt.Errorf("source %s has no listing url", d.Name)
	}
	if _, err := url.ParseRequestURI(d.URL); err != nil {
		return fmt.Errorf("source %s: invalid listing url %q: %w", d.Name, d.URL, err)
	}
	if d.ItemSelector == "" {
		return fmt.Errorf("source %s has no item selector", d.Name)
	}
	if d.TitleSelector == "" {
		return fmt.Errorf("source %s has no title selector", d.Name)
	}
	if d.LinkSelector == "" {
		return fmt.Errorf("source %s has no link selector", d.Name)
	}
	return nil
}

func origin(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return raw
	}
	return parsed.Scheme + "://" + parsed.Host
}
