// Package inference resolves free-text document context to the transaction
// party it talks about. It is used only by producer adapters before an
// observation enters the kernel; the kernel never second-guesses an
// observation's stamped entity.
package inference

import (
	"strings"

	"dealroom/internal/resolution/models"
)

// defaultBuyerKeywords and defaultTargetKeywords are disjoint by
// construction; NewClassifier rejects overlapping custom sets.
var (
	defaultBuyerKeywords = []string{
		"buyer", "acquirer", "purchaser", "bidder", "acquiring company", "buy-side",
	}
	defaultTargetKeywords = []string{
		"target", "seller", "the company", "acquired entity", "divested", "sell-side",
	}
)

// Classifier counts case-insensitive keyword matches from two disjoint sets
// and picks the side with more hits. Each keyword is counted at most once no
// matter how often it appears; a tie (including zero hits on both sides)
// returns the caller-supplied default.
type Classifier struct {
	buyer  []string
	target []string
}

// NewClassifier builds a classifier with the default keyword sets.
func NewClassifier() *Classifier {
	return &Classifier{
		buyer:  defaultBuyerKeywords,
		target: defaultTargetKeywords,
	}
}

// NewClassifierWithKeywords builds a classifier with custom keyword sets.
// Overlapping keywords are dropped from both sides so the sets stay
// disjoint.
func NewClassifierWithKeywords(buyer, target []string) *Classifier {
	buyerSet := make(map[string]struct{}, len(buyer))
	for _, k := range buyer {
		buyerSet[strings.ToLower(k)] = struct{}{}
	}

	var cleanTarget []string
	overlap := make(map[string]struct{})
	for _, k := range target {
		lk := strings.ToLower(k)
		if _, ok := buyerSet[lk]; ok {
			overlap[lk] = struct{}{}
			continue
		}
		cleanTarget = append(cleanTarget, lk)
	}

	var cleanBuyer []string
	for k := range buyerSet {
		if _, ok := overlap[k]; !ok {
			cleanBuyer = append(cleanBuyer, k)
		}
	}

	return &Classifier{buyer: cleanBuyer, target: cleanTarget}
}

// Infer returns the entity the context most likely refers to, or def on a tie.
func (c *Classifier) Infer(context string, def models.Entity) models.Entity {
	lowered := strings.ToLower(context)

	buyerHits := countMatches(lowered, c.buyer)
	targetHits := countMatches(lowered, c.target)

	switch {
	case buyerHits > targetHits:
		return models.EntityBuyer
	case targetHits > buyerHits:
		return models.EntityTarget
	default:
		return def
	}
}

// countMatches counts how many keywords occur in the lowered text, each at
// most once.
func countMatches(lowered string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			hits++
		}
	}
	return hits
}
