// Package visibility models sharing tiers. Every timeline entry carries a
// Category; a viewer holds a set of tier keys and sees an entry when the
// entry's tier, or any tier reachable through AlsoVisible, is among them.
package visibility

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/howyoubeen/internal/common"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier is a sharing level. For custom categories the viewer-facing key is
// "custom:<name>", see Category.Key.
type Tier string

const (
	CloseFamily   Tier = "close_family"
	BestFriends   Tier = "best_friends"
	GoodFriends   Tier = "good_friends"
	Acquaintances Tier = "acquaintances"
	Public        Tier = "public"
	Private       Tier = "private"
	Custom        Tier = "custom"
)

const customPrefix = "custom:"

var known = map[Tier]struct{}{
	CloseFamily:   {},
	BestFriends:   {},
	GoodFriends:   {},
	Acquaintances: {},
	Public:        {},
	Private:       {},
	Custom:        {},
}

// Default tags entries when the caller supplies no category pool.
var Default = Category{Tier: GoodFriends}

// Category is a value: re-tagging an entry means building a new Category,
// never mutating a shared one.
type Category struct {
	Tier        Tier       `json:"tier" yaml:"tier"`
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	AlsoVisible []Category `json:"also_visible,omitempty" yaml:"also_visible,omitempty"`
}

// New builds a validated category.
func New(tier Tier, name string, alsoVisible ...Category) (Category, error) {
	c := Category{Tier: tier, Name: strings.TrimSpace(name), AlsoVisible: alsoVisible}
	if err := c.Validate(); err != nil {
		return Category{}, err
	}
	return c, nil
}

// MustNew is New for package-level literals; it panics on invalid input.
func MustNew(tier Tier, name string, alsoVisible ...Category) Category {
	c, err := New(tier, name, alsoVisible...)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseTier accepts a tier name, case-insensitively, with spaces or dashes
// in place of underscores.
func ParseTier(s string) (Tier, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	t := Tier(norm)
	if _, ok := known[t]; !ok {
		return "", fmt.Errorf("%w: unknown tier %q", common.ErrInvalidVisibility, s)
	}
	return t, nil
}

// Validate checks c and everything reachable from it. A key already on the
// current path is not descended into again; siblings sharing a key are each
// checked.
func (c Category) Validate() error {
	return c.validate(make(map[Tier]struct{}))
}

func (c Category) validate(path map[Tier]struct{}) error {
	if _, ok := known[c.Tier]; !ok {
		return fmt.Errorf("%w: unknown tier %q", common.ErrInvalidVisibility, c.Tier)
	}
	if c.Tier == Custom && strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: custom tier requires a name", common.ErrInvalidVisibility)
	}

	key := c.Key()
	if _, ok := path[key]; ok {
		return nil
	}
	path[key] = struct{}{}
	defer delete(path, key)

	for _, other := range c.AlsoVisible {
		if err := other.validate(path); err != nil {
			return err
		}
	}
	return nil
}

// Key is what a viewer must hold to see content tagged with c directly.
func (c Category) Key() Tier {
	if c.Tier == Custom {
		return Tier(customPrefix + c.Name)
	}
	return c.Tier
}

// DisplayName is a human label: "Good Friends", or the custom name as given.
func (c Category) DisplayName() string {
	if c.Tier == Custom {
		return c.Name
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(c.Tier), "_", " "))
}

func (c Category) String() string {
	return string(c.Key())
}

// IsVisibleTo reports whether a viewer holding the given tier keys may see
// content tagged with entry.
func IsVisibleTo(entry Category, viewer []Tier) bool {
	if len(viewer) == 0 {
		return false
	}
	held := make(map[Tier]struct{}, len(viewer))
	for _, t := range viewer {
		held[t] = struct{}{}
	}
	return visible(entry, held, make(map[Tier]struct{}))
}

// visible tracks keys on the current path only, so a repeated key elsewhere
// in the tree is still explored.
func visible(c Category, held, path map[Tier]struct{}) bool {
	key := c.Key()
	if _, ok := held[key]; ok {
		return true
	}
	if _, ok := path[key]; ok {
		return false
	}
	path[key] = struct{}{}
	defer delete(path, key)

	for _, other := range c.AlsoVisible {
		if visible(other, held, path) {
			return true
		}
	}
	return false
}

// Effective returns the sorted transitive closure of keys reachable from c,
// including c itself.
func Effective(c Category) []Tier {
	acc := make(map[Tier]struct{})
	collect(c, acc, make(map[Tier]struct{}))

	out := make([]Tier, 0, len(acc))
	for t := range acc {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func collect(c Category, acc, path map[Tier]struct{}) {
	key := c.Key()
	acc[key] = struct{}{}
	if _, ok := path[key]; ok {
		return
	}
	path[key] = struct{}{}
	defer delete(path, key)

	for _, other := range c.AlsoVisible {
		collect(other, acc, path)
	}
}

// Flatten turns a list of audience categories into the de-duplicated tier
// keys a viewer of any of them holds, in first-seen order.
func Flatten(cats []Category) []Tier {
	seen := make(map[Tier]struct{}, len(cats))
	out := make([]Tier, 0, len(cats))
	for _, c := range cats {
		k := c.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// PickDefault returns the first category of pool, or fallback when the
// pool is empty.
func PickDefault(pool []Category, fallback Category) Category {
	if len(pool) > 0 {
		return pool[0]
	}
	return fallback
}

// Strings renders tier keys for logs and summaries.
func Strings(tiers []Tier) []string {
	out := make([]string, len(tiers))
	for i, t := range tiers {
		out[i] = string(t)
	}
	return out
}
