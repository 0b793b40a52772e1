package model

import (
	"regexp"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrInvalidTagName = goerr.New("invalid tag name")
)

// SeedTags is the initial vocabulary a fresh database is seeded with.
var SeedTags = []string{
	"anxious",
	"sad",
	"sleepless",
	"worried",
	"hyperfixated",
	"distracted",
}

// Tag names are stored lowercase and used verbatim in queries, so the
// character set is restricted up front.
var tagNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateTagName checks that name is a well-formed vocabulary entry
func ValidateTagName(name string) error {
	if !tagNamePattern.MatchString(name) {
		return goerr.Wrap(ErrInvalidTagName, "tag must be lowercase letters, digits or underscore", goerr.V("name", name))
	}
	return nil
}

// TagFlag records whether a single vocabulary entry applies to a session.
type TagFlag struct {
	Name   string
	Active bool
}

// TagAssignment is the persisted classification result for one session: one
// flag per vocabulary entry at the time of assignment. Its existence is the
// marker that the session has been classified.
type TagAssignment struct {
	SessionID  SessionID
	Flags      []TagFlag
	AssignedAt time.Time
}

// NewTagAssignment builds an assignment covering the given vocabulary, with
// the entries listed in active set to 1.
func NewTagAssignment(id SessionID, vocabulary []string, active []string) *TagAssignment {
	activeSet := make(map[string]bool, len(active))
	for _, tag := range active {
		activeSet[tag] = true
	}

	flags := make([]TagFlag, 0, len(vocabulary))
	for _, tag := range vocabulary {
		flags = append(flags, TagFlag{Name: tag, Active: activeSet[tag]})
	}

	return &TagAssignment{
		SessionID:  id,
		Flags:      flags,
		AssignedAt: time.Now(),
	}
}

// TaggedConversation is one row of the analytics read surface: a classified
// session joined with its creation timestamp.
type TaggedConversation struct {
	SessionID SessionID
	CreatedAt time.Time
	Active    map[string]bool
}
