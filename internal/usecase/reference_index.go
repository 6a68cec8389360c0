package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/nutricam/backend/internal/domain"
)

// Scoring constants, tuned against real product names. The bonus ordering
// and thresholds are load-bearing; see ScoreMatch.
const (
	exactMatchScore      = 100.0
	acceptThreshold      = 8.0
	baseScoreMultiplier  = 10.0
	specificSegmentBonus = 8.0
	singleSegmentBonus   = 6.0
	partialSegmentBonus  = 2.0
	categoryWordBonus    = 1.0
	pluralVariantPoints  = 0.8
	segmentPrefixCover   = 0.6
)

// loadRetryCooldown is how long a failed load is served as an empty index
// before a later lookup may try loading again.
const loadRetryCooldown = 30 * time.Second

// defaultLoadTimeout bounds the reference-list fetch when no timeout is
// configured.
const defaultLoadTimeout = 10 * time.Second

type indexState int

const (
	indexUnloaded indexState = iota
	indexLoaded
	indexFailed
)

// IndexMatch is an accepted reference-index match. DisplayName always
// comes from the English list when an entry with the same code exists,
// whichever language produced the score.
type IndexMatch struct {
	Code        int
	DisplayName string
	Score       float64
}

// ReferenceIndex is the process-wide bilingual reference food index.
// Both language lists are fetched once, on first use, by whichever
// request gets there first; concurrent callers join the in-flight load.
// A failed load leaves the index empty (every match misses) until the
// retry cooldown elapses.
type ReferenceIndex struct {
	client      domain.ReferenceListClient
	loadTimeout time.Duration
	logger      *zap.Logger

	mu            sync.RWMutex
	state         indexState
	failedAt      time.Time
	english       []domain.ReferenceFood
	french        []domain.ReferenceFood
	englishByCode map[int]string

	loadGroup singleflight.Group
}

// NewReferenceIndex creates an unloaded reference index. loadTimeout
// bounds the list fetch on first use.
func NewReferenceIndex(client domain.ReferenceListClient, loadTimeout time.Duration, logger *zap.Logger) *ReferenceIndex {
	if loadTimeout <= 0 {
		loadTimeout = defaultLoadTimeout
	}
	return &ReferenceIndex{
		client:      client,
		loadTimeout: loadTimeout,
		logger:      logger.Named("reference-index"),
	}
}

// ensureLoaded loads both language lists exactly once. It is the only
// mutator of index state.
func (idx *ReferenceIndex) ensureLoaded(ctx context.Context) {
	idx.mu.RLock()
	state, failedAt := idx.state, idx.failedAt
	idx.mu.RUnlock()

	if state == indexLoaded {
		return
	}
	if state == indexFailed && time.Since(failedAt) < loadRetryCooldown {
		return
	}

	// Single-flight: concurrent callers during an in-flight load share
	// one outcome instead of racing duplicate fetches.
	idx.loadGroup.Do("load", func() (interface{}, error) {
		idx.load(ctx)
		return nil, nil
	})
}

func (idx *ReferenceIndex) load(ctx context.Context) {
	// A caller that read a stale unloaded state may get here after a
	// finished load; singleflight only dedups overlapping calls.
	idx.mu.RLock()
	state, failedAt := idx.state, idx.failedAt
	idx.mu.RUnlock()
	if state == indexLoaded || (state == indexFailed && time.Since(failedAt) < loadRetryCooldown) {
		return
	}

	// The loaded index outlives the request that triggered it: detach
	// from that caller's cancellation and bind the configured timeout,
	// so a hung or disconnecting first caller cannot stall or fail the
	// load for everyone joined on it.
	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), idx.loadTimeout)
	defer cancel()

	var english, french []domain.ReferenceFood

	g, gctx := errgroup.WithContext(loadCtx)
	g.Go(func() error {
		var err error
		english, err = idx.client.FetchFoodNames(gctx, "en")
		return err
	})
	g.Go(func() error {
		var err error
		french, err = idx.client.FetchFoodNames(gctx, "fr")
		return err
	})

	if err := g.Wait(); err != nil {
		idx.logger.Warn("reference list load failed; index stays empty", zap.Error(err))
		idx.mu.Lock()
		idx.state = indexFailed
		idx.failedAt = time.Now()
		idx.mu.Unlock()
		return
	}

	byCode := make(map[int]string, len(english))
	for _, food := range english {
		byCode[food.Code] = food.Description
	}

	idx.mu.Lock()
	idx.english = english
	idx.french = french
	idx.englishByCode = byCode
	idx.state = indexLoaded
	idx.mu.Unlock()

	idx.logger.Info("reference index loaded",
		zap.Int("english", len(english)),
		zap.Int("french", len(french)))
}

// Match scores the query against both language lists and returns the best
// accepted match, or nil when neither list produces a score above the
// acceptance threshold. Never returns an error: a failed load is a miss.
func (idx *ReferenceIndex) Match(ctx context.Context, query string) *IndexMatch {
	idx.ensureLoaded(ctx)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bestEN, scoreEN := bestCandidate(query, idx.english)
	bestFR, scoreFR := bestCandidate(query, idx.french)

	best, score := bestEN, scoreEN
	if scoreFR > scoreEN {
		best, score = bestFR, scoreFR
	}
	if best == nil || score < acceptThreshold {
		return nil
	}

	// User-facing naming stays consistent: prefer the English description
	// for the matched code even when the French entry scored higher.
	display := best.Description
	if en, ok := idx.englishByCode[best.Code]; ok {
		display = en
	}

	return &IndexMatch{
		Code:        best.Code,
		DisplayName: display,
		Score:       score,
	}
}

func bestCandidate(query string, foods []domain.ReferenceFood) (*domain.ReferenceFood, float64) {
	var best *domain.ReferenceFood
	bestScore := 0.0
	for i := range foods {
		if score := ScoreMatch(query, foods[i].Description); score > bestScore {
			best = &foods[i]
			bestScore = score
		}
	}
	return best, bestScore
}

// ScoreMatch scores how well a free-text query names the reference food
// described by a comma-segmented description (category first, most
// specific segment last). The constants are empirically tuned; candidates
// below the acceptance threshold are treated as no match by callers.
func ScoreMatch(query, description string) float64 {
	q := normalizeQuery(query)
	d := strings.ToLower(strings.TrimSpace(description))
	if q == "" || d == "" {
		return 0
	}
	if q == d {
		return exactMatchScore
	}

	segments := splitSegments(d)
	words := queryWords(q)
	if len(words) == 0 {
		return 0
	}

	points := 0.0
	for _, word := range words {
		points += wordPoints(word, d)
	}
	if points == 0 {
		return 0
	}

	score := points / float64(len(words)) * baseScoreMultiplier

	// A non-first segment naming the query itself is the strongest signal
	// that the query means the specific food, not just its category.
	// First such segment wins; no further bonus accrual.
	bonusApplied := false
	for _, seg := range segments[1:] {
		// A segment that is merely a short prefix of a long query (e.g.
		// "ham" in "ham and pineapple pizza") names too little of it to
		// count; it must cover most of the query's length.
		if q == seg ||
			strings.HasPrefix(seg, q) ||
			(strings.HasPrefix(q, seg) && float64(len(seg)) >= segmentPrefixCover*float64(len(q))) {
			score += specificSegmentBonus
			bonusApplied = true
			break
		}
	}

	if !bonusApplied {
		fullSegmentHit := false
		partialSegments := 0
		for _, seg := range segments[1:] {
			matched := 0
			for _, word := range words {
				if wordPoints(word, seg) > 0 {
					matched++
				}
			}
			if matched == len(words) {
				fullSegmentHit = true
				break
			}
			if matched > 0 {
				partialSegments++
			}
		}
		if fullSegmentHit {
			score += singleSegmentBonus
		} else {
			score += partialSegmentBonus * float64(partialSegments)
		}
	}

	for _, word := range words {
		if wordPoints(word, segments[0]) > 0 {
			score += categoryWordBonus
		}
	}

	// Penalize verbose and highly compound descriptions.
	score -= float64(len(description)) / 100
	if extra := len(segments) - 3; extra > 0 {
		score -= 0.5 * float64(extra)
	}

	return score
}

// wordPoints awards 1 for a verbatim occurrence and 0.8 for a
// singular/plural variant (trailing "s" added or removed).
func wordPoints(word, text string) float64 {
	if strings.Contains(text, word) {
		return 1
	}
	if strings.HasSuffix(word, "s") {
		if strings.Contains(text, strings.TrimSuffix(word, "s")) {
			return pluralVariantPoints
		}
	} else if strings.Contains(text, word+"s") {
		return pluralVariantPoints
	}
	return 0
}

func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func splitSegments(description string) []string {
	parts := strings.Split(description, ",")
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	if len(segments) == 0 {
		segments = []string{description}
	}
	return segments
}

// queryWords splits the query into matchable words of length > 1.
func queryWords(query string) []string {
	fields := strings.FieldsFunc(query, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ','
	})
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 1 {
			words = append(words, field)
		}
	}
	return words
}
