// Package library derives the views of the library shown to the user:
// logical books grouped from their file variants, filtered, sorted and laid
// out in sections. Nothing here is stored; every view is recomputed from the
// record list.
package library

import (
	"strings"

	"github.com/shishobooks/folio/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// BookGroup is one logical book: every record sharing a normalized title and
// author, e.g. the EPUB and PDF of the same novel.
type BookGroup struct {
	Key      string         `json:"key"`
	Variants []*models.Book `json:"variants"`
}

// Representative is the variant whose metadata stands for the whole group.
func (g *BookGroup) Representative() *models.Book {
	return g.Variants[0]
}

// LatestAddedAt is the most recent import time across all variants.
func (g *BookGroup) LatestAddedAt() int64 {
	var latest int64
	for i, v := range g.Variants {
		if i == 0 || v.AddedAt > latest {
			latest = v.AddedAt
		}
	}
	return latest
}

// IDs returns the id of every variant.
func (g *BookGroup) IDs() []string {
	ids := make([]string, 0, len(g.Variants))
	for _, v := range g.Variants {
		ids = append(ids, v.ID)
	}
	return ids
}

// IdentityKey normalizes a title and author into the key books are grouped
// by. Differences in case, Unicode composition and surrounding whitespace
// don't split a group.
func IdentityKey(title, author string) string {
	return normalize(title) + "\x00" + normalize(author)
}

func normalize(s string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFC.String(s)))
}

// GroupByIdentity partitions records into logical books. Groups come out in
// the order their first variant appears and each group keeps its variants in
// input order.
func GroupByIdentity(records []*models.Book) []*BookGroup {
	groups := []*BookGroup{}
	byKey := map[string]*BookGroup{}

	for _, r := range records {
		key := IdentityKey(r.DisplayTitle(), r.DisplayAuthor())
		g, ok := byKey[key]
		if !ok {
			g = &BookGroup{Key: key}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.Variants = append(g.Variants, r)
	}

	return groups
}

// FindGroup returns the group containing the record with the given id.
func FindGroup(groups []*BookGroup, id string) (*BookGroup, bool) {
	for _, g := range groups {
		for _, v := range g.Variants {
			if v.ID == id {
				return g, true
			}
		}
	}
	return nil, false
}
