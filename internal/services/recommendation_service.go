package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshua-takyi/eventhub/internal/models"
	"github.com/joshua-takyi/eventhub/internal/oracle"
)

const recommendationSystemPrompt = "You are a helpful assistant that recommends events based on user interests. " +
	"Return only event names separated by commas."

// Completer is the relevance oracle: one chat completion, plain text back.
type Completer interface {
	Complete(ctx context.Context, messages []oracle.Message) (string, error)
}

type MatchMode string

const (
	// MatchExact keeps events whose name equals a candidate, ignoring case.
	MatchExact MatchMode = "exact"
	// MatchContains keeps events whose name contains a candidate, ignoring case.
	MatchContains MatchMode = "contains"
)

func ParseMatchMode(s string) MatchMode {
	if strings.EqualFold(strings.TrimSpace(s), string(MatchContains)) {
		return MatchContains
	}
	return MatchExact
}

// Recommendation is what the API returns. Degraded means the full catalog is
// shown because no ranking was possible.
type Recommendation struct {
	Events   []*models.Event `json:"events"`
	Degraded bool            `json:"degraded"`
	Reason   string          `json:"reason,omitempty"`
}

type RecommendationService struct {
	oracle     Completer
	events     models.EventsRepo
	attendance models.AttendanceRepo
	profiles   models.ProfileLookup
	mode       MatchMode
	logger     *slog.Logger
}

type RecommendationServiceArgs struct {
	Oracle Completer
	Events models.EventsRepo
	// Attendance overlays live attendee counts on returned events. Optional.
	Attendance models.AttendanceRepo
	Profiles   models.ProfileLookup
	Mode       MatchMode
	Logger     *slog.Logger
}

func NewRecommendationService(args RecommendationServiceArgs) *RecommendationService {
	logger := args.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mode := args.Mode
	if mode == "" {
		mode = MatchExact
	}
	return &RecommendationService{
		oracle:     args.Oracle,
		events:     args.Events,
		attendance: args.Attendance,
		profiles:   args.Profiles,
		mode:       mode,
		logger:     logger,
	}
}

// Recommend asks the oracle which catalog events fit bio and maps its reply
// back onto the catalog, in the oracle's order. An empty reply or one that
// matches nothing yields the whole catalog.
func (rs *RecommendationService) Recommend(ctx context.Context, bio string, catalog []*models.Event) ([]*models.Event, error) {
	bio = strings.TrimSpace(bio)
	if bio == "" {
		return nil, models.ErrNoBioProvided
	}
	if rs.oracle == nil {
		return nil, models.ErrServiceUnavailable
	}

	reply, err := rs.oracle.Complete(ctx, []oracle.Message{
		{Role: "system", Content: recommendationSystemPrompt},
		{Role: "user", Content: buildPrompt(bio, catalog)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrServiceUnavailable, err)
	}

	candidates := parseCandidates(reply)
	if len(candidates) == 0 {
		return catalog, nil
	}
	matched := matchCandidates(candidates, catalog, rs.mode)
	if len(matched) == 0 {
		return catalog, nil
	}
	return matched, nil
}

// RecommendForUser loads the user's bio and visible catalog and ranks it.
// Missing bio and oracle failures degrade to the full catalog.
func (rs *RecommendationService) RecommendForUser(ctx context.Context, userID string, gender models.Gender) (*Recommendation, error) {
	all, err := rs.events.ListEvents(ctx)
	if err != nil {
		return nil, err
	}
	catalog := visibleTo(all, gender)
	if rs.attendance != nil {
		if catalog, err = withLiveCounts(ctx, rs.attendance, catalog); err != nil {
			return nil, err
		}
	}

	var bio string
	if rs.profiles != nil {
		profile, err := rs.profiles.GetProfile(ctx, userID)
		switch {
		case err == nil:
			bio = profile.Bio
		case errors.Is(err, models.ErrUserNotFound):
		default:
			return nil, err
		}
	}

	events, err := rs.Recommend(ctx, bio, catalog)
	switch {
	case err == nil:
		return &Recommendation{Events: events}, nil
	case errors.Is(err, models.ErrNoBioProvided):
		return &Recommendation{
			Events:   catalog,
			Degraded: true,
			Reason:   "add a bio to your profile to get personalised recommendations",
		}, nil
	case errors.Is(err, models.ErrServiceUnavailable):
		rs.logger.Warn("recommendation oracle unavailable, showing all events", "user_id", userID, "error", err)
		return &Recommendation{
			Events:   catalog,
			Degraded: true,
			Reason:   "recommendations are unavailable right now, showing all events",
		}, nil
	}
	return nil, err
}

func buildPrompt(bio string, catalog []*models.Event) string {
	var b strings.Builder
	b.WriteString(`The user wrote: "`)
	b.WriteString(bio)
	b.WriteString("\".\n\n")
	b.WriteString("Here are the available events:\n")
	for _, e := range catalog {
		b.WriteString("- ")
		b.WriteString(e.Name)
		b.WriteString(": ")
		b.WriteString(e.Description)
		b.WriteString("\n")
	}
	b.WriteString("\nSelect 3 to 5 event names that best match the user's interest. ")
	b.WriteString("Return only the event names separated by commas, without explanations.")
	return b.String()
}

const quoteChars = "\"'`“”‘’"

// parseCandidates splits the oracle's reply on commas and cleans each name.
func parseCandidates(reply string) []string {
	var out []string
	for _, part := range strings.Split(reply, ",") {
		name := strings.TrimSpace(part)
		name = strings.Trim(name, quoteChars)
		name = strings.TrimRight(name, ".")
		name = strings.TrimSpace(strings.Trim(name, quoteChars))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func matchCandidates(candidates []string, catalog []*models.Event, mode MatchMode) []*models.Event {
	seen := make(map[*models.Event]bool, len(catalog))
	var out []*models.Event
	for _, c := range candidates {
		want := strings.ToLower(c)
		for _, e := range catalog {
			if seen[e] {
				continue
			}
			name := strings.ToLower(strings.TrimSpace(e.Name))
			hit := name == want
			if mode == MatchContains {
				hit = strings.Contains(name, want)
			}
			if hit {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}
