package knowledge

import (
	"errors"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
)

var (
	ErrEmptyDomainName  = errors.New("domain name cannot be empty")
	ErrParentNotFound   = errors.New("parent domain not found")
	ErrDuplicateDomain  = errors.New("domain already exists")
	ErrDomainNotFound   = errors.New("domain not found")
	ErrTooFewMemories   = errors.New("concept needs at least two memories")
	ErrNotCategorized   = errors.New("memory is not categorized")
	ErrEmptyConceptName = errors.New("concept name cannot be empty")
)

// Domain is a named topical bucket defined by its keywords.
type Domain struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ParentID    string   `json:"parent_id,omitempty"`
	Keywords    []string `json:"keywords"`
	UserDefined bool     `json:"user_defined"`
}

func (d *Domain) clone() Domain {
	out := *d
	out.Keywords = append([]string(nil), d.Keywords...)
	return out
}

type seedDomain struct {
	name        string
	description string
	parent      string
	keywords    []string
}

// starterDomains are registered in order; parents precede children.
var starterDomains = []seedDomain{
	{
		name:        "Science",
		description: "Natural sciences and the scientific method",
		keywords:    []string{"science", "scientific", "research", "experiment", "theory", "hypothesis", "study", "evidence", "data"},
	},
	{
		name:        "Physics",
		description: "Matter, energy and the laws of motion",
		parent:      "Science",
		keywords:    []string{"physics", "energy", "quantum", "gravity", "force", "particle", "motion", "relativity", "light"},
	},
	{
		name:        "Biology",
		description: "Living organisms and life processes",
		parent:      "Science",
		keywords:    []string{"biology", "cell", "cells", "gene", "genes", "evolution", "organism", "species", "protein", "dna"},
	},
	{
		name:        "Chemistry",
		description: "Substances, their properties and reactions",
		parent:      "Science",
		keywords:    []string{"chemistry", "molecule", "molecules", "reaction", "element", "compound", "atom", "atoms", "acid"},
	},
	{
		name:        "Technology",
		description: "Computing, software and engineered systems",
		keywords:    []string{"technology", "software", "computer", "code", "programming", "internet", "algorithm", "device", "hardware", "app"},
	},
	{
		name:        "Humanities",
		description: "History, philosophy, arts and culture",
		keywords:    []string{"history", "philosophy", "literature", "art", "culture", "language", "music", "religion", "poetry"},
	},
	{
		name:        "Personal",
		description: "Personal life, relationships and wellbeing",
		keywords:    []string{"family", "friend", "friends", "health", "hobby", "home", "feeling", "relationship", "exercise", "sleep"},
	},
	{
		name:        "Professional",
		description: "Work, career and business",
		keywords:    []string{"work", "career", "meeting", "project", "business", "colleague", "deadline", "manager", "office", "client"},
	},
}

// normalizeKeywords lowercases, deduplicates and splits keywords into the
// single tokens memory text is matched on, so "machine learning" registers
// both words.
func normalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		for _, tok := range interaction.Tokenize(k) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}
