package handlers

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/seedwright/seedwright/internal/metadata"
)

// Keyword boost applied when a handler's id and the constraint's text both
// reference the same framework-specific keyword.
const keywordBoost = 0.3

// Candidates within this confidence distance are considered tied and fall
// back to raw priority.
const tieEpsilon = 0.1

var defaultKeywords = []string{
	"personal_account",
	"slug",
	"tenant",
	"makerkit",
	"supabase",
	"rails",
}

// Registry holds the registered constraint handlers and selects the best
// one per constraint. Registration is a startup-time activity; a duplicate
// id is a configuration error, never silently ignored.
type Registry struct {
	byType   map[Type][]ConstraintHandler
	ids      map[string]bool
	keywords []string
	log      *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		byType:   make(map[Type][]ConstraintHandler),
		ids:      make(map[string]bool),
		keywords: append([]string(nil), defaultKeywords...),
		log:      log,
	}
}

// Register validates and adds a handler.
func (r *Registry) Register(h ConstraintHandler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	id := h.ID()
	if id == "" {
		return fmt.Errorf("handler has an empty id")
	}
	if !validType(h.Type()) {
		return fmt.Errorf("handler %q has invalid type %q", id, h.Type())
	}
	if r.ids[id] {
		return fmt.Errorf("handler id %q already registered", id)
	}
	r.ids[id] = true
	r.byType[h.Type()] = append(r.byType[h.Type()], h)
	return nil
}

// AddKeyword extends the framework keyword list used for selection boosts.
func (r *Registry) AddKeyword(word string) {
	r.keywords = append(r.keywords, strings.ToLower(word))
}

// FindHandler returns the best handler for a constraint along with its
// selection confidence, or ok=false when no registered handler of the
// matching type accepts it.
func (r *Registry) FindHandler(c Constraint, data metadata.Row) (ConstraintHandler, float64, bool) {
	type candidate struct {
		h     ConstraintHandler
		score float64
	}
	var candidates []candidate
	for _, h := range r.byType[c.ConstraintType()] {
		if !r.canHandle(h, c, data) {
			continue
		}
		score := float64(h.Priority()) / 100
		if score > 1 {
			score = 1
		}
		if r.keywordMatch(h.ID(), c.SearchText()) {
			score += keywordBoost
		}
		candidates = append(candidates, candidate{h: h, score: score})
	}
	if len(candidates) == 0 {
		return nil, 0, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di := candidates[i].score - candidates[j].score
		if di > -tieEpsilon && di < tieEpsilon {
			return candidates[i].h.Priority() > candidates[j].h.Priority()
		}
		return candidates[i].score > candidates[j].score
	})
	return candidates[0].h, candidates[0].score, true
}

// Handle resolves a single constraint. Absence of a matching handler is a
// bypass with a warning, never a silent pass. A panicking handler is
// contained and converted to a failed result.
func (r *Registry) Handle(c Constraint, data metadata.Row) Result {
	h, confidence, ok := r.FindHandler(c, data)
	if !ok {
		r.log.Warn("no handler for constraint",
			"constraint", c.ConstraintName(), "type", string(c.ConstraintType()))
		return Result{
			Success:        true,
			Data:           data,
			BypassRequired: true,
			Warnings: []string{fmt.Sprintf("no handler for %s constraint %q",
				c.ConstraintType(), c.ConstraintName())},
		}
	}
	r.log.Debug("constraint handler selected",
		"constraint", c.ConstraintName(), "handler", h.ID(), "confidence", confidence)
	return r.dispatch(h, c, data)
}

// HandleAll folds a table's whole constraint set in a fixed order: check,
// then foreign key, unique, and not null. Each handler receives the data as
// mutated by the previous one.
func (r *Registry) HandleAll(constraints []Constraint, data metadata.Row) Result {
	merged := Result{Success: true, Data: data}
	for _, t := range FoldOrder {
		for _, c := range constraints {
			if c.ConstraintType() != t {
				continue
			}
			res := r.Handle(c, merged.Data)
			merged.merge(res)
		}
	}
	return merged
}

func (r *Registry) dispatch(h ConstraintHandler, c Constraint, data metadata.Row) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("constraint handler panicked",
				"handler", h.ID(), "constraint", c.ConstraintName(), "panic", p)
			res = Result{
				Data:           data,
				BypassRequired: true,
				Errors:         []string{fmt.Sprintf("handler %q panicked: %v", h.ID(), p)},
			}
		}
	}()
	return h.Handle(c, data)
}

func (r *Registry) canHandle(h ConstraintHandler, c Constraint, data metadata.Row) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return h.CanHandle(c, data)
}

func (r *Registry) keywordMatch(handlerID, constraintText string) bool {
	id := strings.ToLower(handlerID)
	text := strings.ToLower(constraintText)
	for _, kw := range r.keywords {
		if strings.Contains(id, kw) && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
