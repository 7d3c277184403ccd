package insight

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fyrsmithlabs/learnd/internal/interaction"
	"go.uber.org/zap"
)

// TransitionKind names a state change applied to an insight.
type TransitionKind string

const (
	TransitionCreated      TransitionKind = "created"
	TransitionReinforced   TransitionKind = "reinforced"
	TransitionContradicted TransitionKind = "contradicted"
	TransitionVerified     TransitionKind = "verified"
	TransitionDeactivated  TransitionKind = "deactivated"
)

// Transition describes one state change.
type Transition struct {
	InsightID  string         `json:"insight_id"`
	Category   Category       `json:"category"`
	Kind       TransitionKind `json:"kind"`
	From       Level          `json:"from"`
	To         Level          `json:"to"`
	Confidence float64        `json:"confidence"`
	Active     bool           `json:"active"`
}

// Filter selects insights for Query. Zero fields are unconstrained.
type Filter struct {
	Categories    []Category
	MinConfidence float64
	ActiveOnly    bool
	Limit         int
}

// Repository owns the set of insights. All mutation happens under one mutex.
type Repository struct {
	mu        sync.RWMutex
	insights  map[string]*Insight
	order     []string
	window    []sample
	observed  int
	th        Thresholds
	topics    []Topic
	scorer    *Scorer
	detectors []detector
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithTopics replaces the topic table used for scoring and detection.
func WithTopics(topics []Topic) Option {
	return func(r *Repository) { r.topics = topics }
}

// NewRepository creates an empty repository.
func NewRepository(th Thresholds, opts ...Option) *Repository {
	r := &Repository{
		insights:  make(map[string]*Insight),
		th:        th,
		topics:    DefaultTopics(),
		detectors: defaultDetectors(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.scorer = NewScorer(r.topics)
	return r
}

// Create adds a HYPOTHESIS insight directly.
func (r *Repository) Create(category Category, description string, tags []string) (*Insight, error) {
	ins, err := NewInsight(category, description, LevelHypothesis, 0.3, tags, nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	ins.CreatedAt, ins.UpdatedAt = now, now
	r.insert(ins)
	r.record(Transition{InsightID: ins.ID, Category: ins.Category, Kind: TransitionCreated, To: ins.Level, Confidence: ins.Confidence, Active: true})
	out := ins.clone()
	return &out, nil
}

// Observe applies one interaction: targeted feedback first, then
// reinforcement scoring of every active insight, then generation once
// enough interactions have been seen.
func (r *Repository) Observe(i interaction.Interaction, f interaction.Features) []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()

	smp := newSample(i, f)
	r.observed++
	r.window = append(r.window, smp)
	if over := len(r.window) - r.th.RecentWindow; r.th.RecentWindow > 0 && over > 0 {
		r.window = append([]sample(nil), r.window[over:]...)
	}

	var out []Transition
	target := ""
	if fb := i.Feedback; fb != nil && fb.TargetID != "" {
		target = fb.TargetID
		if ins, ok := r.insights[target]; ok && ins.Active {
			if t, ok := r.applyFeedback(ins, i, fb.Rating); ok {
				out = append(out, t)
			}
		}
	}

	for _, id := range r.order {
		ins := r.insights[id]
		if !ins.Active || id == target {
			continue
		}
		score, relevant := r.scorer.score(ins, smp)
		if !relevant {
			continue
		}
		switch {
		case score > r.th.ReinforceThreshold:
			out = append(out, r.reinforce(ins, i, score))
		case score < r.th.ContradictThreshold:
			out = append(out, r.contradict(ins, i, score)...)
		}
	}

	if r.observed >= r.th.MinInteractions {
		out = append(out, r.generate()...)
	}
	return out
}

func (r *Repository) reinforce(ins *Insight, i interaction.Interaction, score float64) Transition {
	from := ins.Level
	ins.Reinforcements++
	ins.adjustConfidence(r.th.ReinforceDelta)
	ins.addEvidence(fmt.Sprintf("reinforced by %s %s (score %.2f)", i.Type, i.ID, score))

	if ins.Level != LevelVerified {
		if next := levelFor(ins.Reinforcements, ins.Contradictions, r.th); next.Rank() > ins.Level.Rank() {
			ins.Level = next
		}
	}
	if ins.Level == LevelConfirmed && from != LevelConfirmed && ins.Confidence < r.th.ConfirmedConfidenceFloor {
		ins.Confidence = r.th.ConfirmedConfidenceFloor
	}
	ins.UpdatedAt = r.now()

	t := Transition{InsightID: ins.ID, Category: ins.Category, Kind: TransitionReinforced, From: from, To: ins.Level, Confidence: ins.Confidence, Active: true}
	r.record(t)
	return t
}

func (r *Repository) contradict(ins *Insight, i interaction.Interaction, score float64) []Transition {
	from := ins.Level
	ins.Contradictions++
	ins.adjustConfidence(-r.th.ContradictDelta)
	ins.addEvidence(fmt.Sprintf("contradicted by %s %s (score %.2f)", i.Type, i.ID, score))

	if ins.Contradictions > ins.Reinforcements && ins.Level != LevelVerified {
		down := ins.Level.Down()
		if floor := levelFor(ins.Reinforcements, ins.Contradictions, r.th); down.Rank() < floor.Rank() {
			down = floor
		}
		if down.Rank() < ins.Level.Rank() {
			ins.Level = down
		}
	}
	ins.UpdatedAt = r.now()

	out := []Transition{{InsightID: ins.ID, Category: ins.Category, Kind: TransitionContradicted, From: from, To: ins.Level, Confidence: ins.Confidence, Active: true}}
	r.record(out[0])

	if ins.Contradictions > ins.Reinforcements && ins.Contradictions > r.th.DeactivateMinContradictions {
		out = append(out, r.deactivate(ins, "contradictions outweigh reinforcements"))
	}
	return out
}

func (r *Repository) applyFeedback(ins *Insight, i interaction.Interaction, rating int) (Transition, bool) {
	switch {
	case rating >= 4:
		from := ins.Level
		ins.Level = LevelVerified
		ins.Confidence = 1.0
		ins.addEvidence(fmt.Sprintf("verified by feedback %s (rating %d)", i.ID, rating))
		ins.UpdatedAt = r.now()
		t := Transition{InsightID: ins.ID, Category: ins.Category, Kind: TransitionVerified, From: from, To: ins.Level, Confidence: ins.Confidence, Active: true}
		r.record(t)
		return t, true
	case rating > 0 && rating <= 2:
		return r.deactivate(ins, fmt.Sprintf("rejected by feedback %s (rating %d)", i.ID, rating)), true
	}
	return Transition{}, false
}

func (r *Repository) deactivate(ins *Insight, reason string) Transition {
	ins.Active = false
	ins.addEvidence("deactivated: " + reason)
	ins.UpdatedAt = r.now()
	t := Transition{InsightID: ins.ID, Category: ins.Category, Kind: TransitionDeactivated, From: ins.Level, To: ins.Level, Confidence: ins.Confidence}
	r.record(t)
	return t
}

// ForceVerify applies an experiment confirmation: confidence 1.0 and level
// CONFIRMED, keeping VERIFIED if already verified.
func (r *Repository) ForceVerify(id, evidence string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ins, ok := r.insights[id]
	if !ok {
		return ErrInsightNotFound
	}
	if !ins.Active {
		return ErrInsightInactive
	}
	from := ins.Level
	ins.Confidence = 1.0
	if ins.Level != LevelVerified {
		ins.Level = LevelConfirmed
	}
	ins.addEvidence(evidence)
	ins.UpdatedAt = r.now()
	r.record(Transition{InsightID: ins.ID, Category: ins.Category, Kind: TransitionVerified, From: from, To: ins.Level, Confidence: ins.Confidence, Active: true})
	return nil
}

// Reject applies an experiment rejection: the insight is deactivated and its
// confidence capped at 0.2.
func (r *Repository) Reject(id, evidence string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ins, ok := r.insights[id]
	if !ok {
		return ErrInsightNotFound
	}
	if !ins.Active {
		return ErrInsightInactive
	}
	if ins.Confidence > 0.2 {
		ins.Confidence = 0.2
	}
	r.deactivate(ins, evidence)
	return nil
}

func (r *Repository) generate() []Transition {
	active := map[Category]int{}
	for _, ins := range r.insights {
		if ins.Active {
			active[ins.Category]++
		}
	}

	var out []Transition
	for _, detect := range r.detectors {
		for _, c := range detect(r.window, r.topics) {
			if !r.th.enabled(c.category) || active[c.category] >= r.th.MaxPerCategory || r.covered(c.tags) {
				continue
			}
			level, confidence := LevelHypothesis, 0.3
			if c.strong {
				level, confidence = LevelEmerging, 0.5
			}
			ins, err := NewInsight(c.category, c.description, level, confidence, c.tags, c.evidence)
			if err != nil {
				r.logger.Warn("skipping invalid insight candidate", zap.Error(err))
				continue
			}
			now := r.now()
			ins.CreatedAt, ins.UpdatedAt = now, now
			r.insert(ins)
			active[c.category]++

			t := Transition{InsightID: ins.ID, Category: ins.Category, Kind: TransitionCreated, To: ins.Level, Confidence: ins.Confidence, Active: true}
			r.record(t)
			out = append(out, t)
		}
	}
	return out
}

func (r *Repository) covered(tags []string) bool {
	for _, ins := range r.insights {
		if ins.Active && ins.SharesTag(tags) {
			return true
		}
	}
	return false
}

func (r *Repository) insert(ins *Insight) {
	if _, exists := r.insights[ins.ID]; !exists {
		r.order = append(r.order, ins.ID)
	}
	r.insights[ins.ID] = ins
}

func (r *Repository) record(t Transition) {
	TransitionsTotal.WithLabelValues(string(t.Kind), string(t.Category)).Inc()
	r.logger.Debug("insight transition",
		zap.String("insight_id", t.InsightID),
		zap.String("kind", string(t.Kind)),
		zap.String("from", string(t.From)),
		zap.String("to", string(t.To)),
		zap.Float64("confidence", t.Confidence),
	)
}

// Get returns a copy of the insight.
func (r *Repository) Get(id string) (*Insight, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ins, ok := r.insights[id]
	if !ok {
		return nil, false
	}
	out := ins.clone()
	return &out, true
}

// Query returns matching insights sorted by descending confidence.
func (r *Repository) Query(f Filter) []Insight {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := map[Category]bool{}
	for _, c := range f.Categories {
		wanted[c] = true
	}

	var out []Insight
	for _, id := range r.order {
		ins := r.insights[id]
		if f.ActiveOnly && !ins.Active {
			continue
		}
		if len(wanted) > 0 && !wanted[ins.Category] {
			continue
		}
		if ins.Confidence < f.MinConfidence {
			continue
		}
		out = append(out, ins.clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// All returns copies of every insight in creation order.
func (r *Repository) All() []Insight {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Insight, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.insights[id].clone())
	}
	return out
}

// Observed returns the number of interactions seen.
func (r *Repository) Observed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.observed
}

// Decay lowers the confidence of active, unverified insights not updated
// within StaleAfter. It returns the number decayed.
func (r *Repository) Decay(now time.Time) int {
	if r.th.StaleAfter <= 0 || r.th.DecayDelta <= 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ins := range r.insights {
		if !ins.Active || ins.Level == LevelVerified {
			continue
		}
		if now.Sub(ins.UpdatedAt) < r.th.StaleAfter {
			continue
		}
		ins.adjustConfidence(-r.th.DecayDelta)
		n++
	}
	if n > 0 {
		DecayedTotal.Add(float64(n))
	}
	return n
}

// Restore loads persisted insights, replacing any with the same id. Invalid
// records are skipped individually.
func (r *Repository) Restore(insights []Insight) (loaded, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, in := range insights {
		if err := in.Validate(); err != nil {
			r.logger.Warn("skipping invalid insight", zap.String("insight_id", in.ID), zap.Error(err))
			skipped++
			continue
		}
		cp := in.clone()
		r.insert(&cp)
		loaded++
	}
	return loaded, skipped
}
