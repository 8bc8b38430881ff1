package models

import (
	"fmt"
	"strings"
)

// QuarterHourSlots are 15 minute slots from 11:00 AM to 02:00 PM.
var QuarterHourSlots = []string{
	"11:00 AM",
	"11:15 AM",
	"11:30 AM",
	"11:45 AM",
	"12:00 PM",
	"12:15 PM",
	"12:30 PM",
	"12:45 PM",
	"01:00 PM",
	"01:15 PM",
	"01:30 PM",
	"01:45 PM",
	"02:00 PM",
}

// HourlySlots are hourly slots from 09:00 AM to 05:00 PM.
var HourlySlots = []string{
	"09:00 AM",
	"10:00 AM",
	"11:00 AM",
	"12:00 PM",
	"01:00 PM",
	"02:00 PM",
	"03:00 PM",
	"04:00 PM",
	"05:00 PM",
}

// BuiltinCatalog returns a copy of a named slot list.
func BuiltinCatalog(name string) ([]string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case CatalogQuarterHour:
		return append([]string(nil), QuarterHourSlots...), true
	case CatalogHourly:
		return append([]string(nil), HourlySlots...), true
	default:
		return nil, false
	}
}

// Catalog is the immutable ordered list of slot labels offered each day.
type Catalog struct {
	labels   []string
	position map[string]int
}

func NewCatalog(labels []string) (*Catalog, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("catalog has no time slots")
	}
	c := &Catalog{
		labels:   make([]string, 0, len(labels)),
		position: make(map[string]int, len(labels)),
	}
	for _, label := range labels {
		if strings.TrimSpace(label) == "" {
			return nil, fmt.Errorf("catalog contains an empty time slot")
		}
		if _, dup := c.position[label]; dup {
			return nil, fmt.Errorf("duplicate time slot %q", label)
		}
		c.position[label] = len(c.labels)
		c.labels = append(c.labels, label)
	}
	return c, nil
}

// MustCatalog is NewCatalog for static label lists.
func MustCatalog(labels []string) *Catalog {
	c, err := NewCatalog(labels)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Labels() []string {
	return append([]string(nil), c.labels...)
}

func (c *Catalog) Len() int {
	return len(c.labels)
}

func (c *Catalog) Contains(label string) bool {
	_, ok := c.position[label]
	return ok
}
