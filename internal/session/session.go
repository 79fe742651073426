// =============================================================================
// Grade Summary - Session
// =============================================================================
//
// A Session owns one canonical table and the selections made over it.
//
// STATE MACHINE:
//
//   NoData ──Ingest──► Ingesting ──ok──► Ready
//      ▲                   │
//      │                   └──batch error──► Failed
//      └──────────────── Reset (from any state)
//
//   A new Ingest always starts from a clean slate: the previous table, the
//   selections, the memoized views and the cached exports are dropped first.
//
// DRILL-DOWN:
//   Level 1 (course view) : rows in the selected periods, grouped by Μάθημα.
//   Level 2 (cohort view) : rows in the selected periods and courses,
//                           grouped by Έτος Εγγραφής.
//   A level with an empty selection is "awaiting", never a summary over all
//   rows. A level whose selection matches no rows is "empty".
//
// =============================================================================

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/gradesum/internal/aggregate"
	"github.com/ginjaninja78/gradesum/internal/converter"
	"github.com/ginjaninja78/gradesum/internal/metrics"
	"github.com/ginjaninja78/gradesum/internal/types"
	"github.com/ginjaninja78/gradesum/internal/xlsxwriter"
)

// =============================================================================
// STATES AND ERRORS
// =============================================================================

// State is the lifecycle state of a session.
type State string

const (
	StateNoData    State = "no_data"
	StateIngesting State = "ingesting"
	StateFailed    State = "failed"
	StateReady     State = "ready"
)

// Level identifies one of the two drill-down summaries.
type Level string

const (
	LevelCourse Level = "course"
	LevelCohort Level = "cohort"
)

// ViewState tells the host what to render for a level.
type ViewState string

const (
	ViewAwaiting ViewState = "awaiting"
	ViewEmpty    ViewState = "empty"
	ViewReady    ViewState = "ready"
)

var (
	// ErrNotReady is returned when an operation needs a canonical table and
	// the session has none.
	ErrNotReady = errors.New("no data loaded")

	// ErrPeriodsRequired is returned when courses are requested before any
	// period is selected.
	ErrPeriodsRequired = errors.New("select at least one period first")

	// ErrUnknownSelection is matched by every *SelectionError.
	ErrUnknownSelection = errors.New("unknown selection")

	// ErrNothingToExport is returned when the requested level has no summary.
	ErrNothingToExport = errors.New("no summary to export")

	// ErrUnknownLevel is returned for a level other than course or cohort.
	ErrUnknownLevel = errors.New("unknown summary level")
)

// SelectionError names the selected values that are not available options.
type SelectionError struct {
	Field  string
	Values []string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Field, strings.Join(e.Values, ", "))
}

func (e *SelectionError) Unwrap() error { return ErrUnknownSelection }

// =============================================================================
// VIEWS
// =============================================================================

// View is what one drill-down level shows.
type View struct {
	Level   Level               `json:"level"`
	State   ViewState           `json:"state"`
	Summary *types.SummaryTable `json:"summary,omitempty"`
}

// Status is a point-in-time description of a session.
type Status struct {
	ID              string                 `json:"id"`
	State           State                  `json:"state"`
	Files           []converter.FileResult `json:"files"`
	Rows            int                    `json:"rows"`
	Error           string                 `json:"error,omitempty"`
	SelectedPeriods []string               `json:"selected_periods"`
	SelectedCourses []string               `json:"selected_courses"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// =============================================================================
// SESSION STRUCTURE
// =============================================================================

// Session holds the data and selections of one user. All methods are safe
// for concurrent use; they serialize on the session's mutex.
type Session struct {
	mu sync.Mutex

	id         string
	state      State
	generation uint64
	files      []converter.FileResult
	batchErr   error
	canonical  *types.CanonicalTable
	periods    []string
	courses    []string
	views      map[string]View
	updatedAt  time.Time

	converter *converter.Converter
	exporter  *xlsxwriter.Exporter
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates an empty session.
//
// PARAMETERS:
//   - id: The session identifier.
//   - conv: The ingestion pipeline. It may be shared between sessions.
//   - logger: The logger; the session adds its id to every record.
//   - m: The metrics to record into. May be nil.
func New(id string, conv *converter.Converter, logger *slog.Logger, m *metrics.Metrics) *Session {
	logger = logger.With(slog.String("session", id))
	return &Session{
		id:        id,
		state:     StateNoData,
		views:     make(map[string]View),
		updatedAt: time.Now(),
		converter: conv,
		exporter:  xlsxwriter.NewExporter(logger, m),
		logger:    logger,
		metrics:   m,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Reset returns the session to NoData and drops every derived value.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.logger.Info("session reset")
}

func (s *Session) resetLocked() {
	s.state = StateNoData
	s.generation++
	s.files = nil
	s.batchErr = nil
	s.canonical = nil
	s.periods = nil
	s.courses = nil
	s.views = make(map[string]View)
	s.exporter.Reset()
	s.updatedAt = time.Now()
}

// =============================================================================
// INGESTION
// =============================================================================

// Ingest replaces the session's data with the given batch of files.
//
// RETURNS:
//   - The converter result with one entry per file. On a batch error
//     result.Err is set and the session is left in the Failed state.
func (s *Session) Ingest(ctx context.Context, sources []converter.Source) *converter.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	s.state = StateIngesting

	result := s.converter.Run(ctx, sources)

	s.files = result.Files
	s.updatedAt = time.Now()

	if result.Err != nil {
		s.state = StateFailed
		s.batchErr = result.Err
		s.logger.Warn("ingest failed", slog.Int("files", len(sources)), slog.String("error", result.Err.Error()))
		return result
	}

	s.canonical = result.Canonical
	s.state = StateReady
	s.logger.Info("ingest complete",
		slog.Int("files", len(sources)),
		slog.Int("accepted", result.Stats.FilesAccepted),
		slog.Int("rows", result.Canonical.Len()))

	return result
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:              s.id,
		State:           s.state,
		Files:           append([]converter.FileResult{}, s.files...),
		Rows:            s.canonical.Len(),
		SelectedPeriods: append([]string{}, s.periods...),
		SelectedCourses: append([]string{}, s.courses...),
		UpdatedAt:       s.updatedAt,
	}
	if s.batchErr != nil {
		st.Error = s.batchErr.Error()
	}
	return st
}

// Preview returns up to limit canonical rows. A limit of zero or less
// returns every row.
func (s *Session) Preview(limit int) ([]types.CanonicalRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, ErrNotReady
	}

	rows := s.canonical.Rows
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return append([]types.CanonicalRow{}, rows...), nil
}

// =============================================================================
// SELECTIONS
// =============================================================================

// PeriodOptions returns the distinct periods of the canonical table.
func (s *Session) PeriodOptions() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, ErrNotReady
	}
	return aggregate.DistinctValues(s.canonical, types.PeriodColumn), nil
}

// SelectedPeriods returns the current period selection, sorted.
func (s *Session) SelectedPeriods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.periods...)
}

// SelectPeriods replaces the period selection. Every value must be one of
// PeriodOptions. Selected courses that are no longer available under the new
// periods are dropped.
func (s *Session) SelectPeriods(values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrNotReady
	}

	options := aggregate.DistinctValues(s.canonical, types.PeriodColumn)
	selected, err := checkSelection("periods", values, options)
	if err != nil {
		return err
	}

	s.periods = selected
	s.courses = intersect(s.courses, s.courseOptionsLocked())
	s.pruneViewsLocked()
	s.updatedAt = time.Now()
	s.logger.Debug("periods selected", slog.Any("periods", selected), slog.Any("courses", s.courses))
	return nil
}

// CourseOptions returns the distinct courses in the selected periods.
func (s *Session) CourseOptions() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return nil, ErrNotReady
	}
	if len(s.periods) == 0 {
		return nil, ErrPeriodsRequired
	}
	return s.courseOptionsLocked(), nil
}

func (s *Session) courseOptionsLocked() []string {
	if len(s.periods) == 0 {
		return []string{}
	}
	filtered := aggregate.Filter(s.canonical, types.PeriodColumn, s.periods)
	return aggregate.DistinctValues(filtered, types.CourseColumn)
}

// SelectedCourses returns the current course selection, sorted.
func (s *Session) SelectedCourses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.courses...)
}

// SelectCourses replaces the course selection. Every value must be one of
// CourseOptions. An empty selection is always accepted.
func (s *Session) SelectCourses(values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrNotReady
	}
	if len(values) > 0 && len(s.periods) == 0 {
		return ErrPeriodsRequired
	}

	selected, err := checkSelection("courses", values, s.courseOptionsLocked())
	if err != nil {
		return err
	}

	s.courses = selected
	s.pruneViewsLocked()
	s.updatedAt = time.Now()
	s.logger.Debug("courses selected", slog.Any("courses", selected))
	return nil
}

// checkSelection deduplicates and sorts values and rejects any value that is
// not among options.
func checkSelection(field string, values, options []string) ([]string, error) {
	available := make(map[string]struct{}, len(options))
	for _, o := range options {
		available[o] = struct{}{}
	}

	seen := make(map[string]struct{}, len(values))
	selected := make([]string, 0, len(values))
	var unknown []string
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := available[v]; !ok {
			unknown = append(unknown, v)
			continue
		}
		selected = append(selected, v)
	}

	if len(unknown) > 0 {
		return nil, &SelectionError{Field: field, Values: unknown}
	}
	sort.Strings(selected)
	return selected, nil
}

func intersect(values, options []string) []string {
	keep := make(map[string]struct{}, len(options))
	for _, o := range options {
		keep[o] = struct{}{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := keep[v]; ok {
			out = append(out, v)
		}
	}
	return out
}

// =============================================================================
// SUMMARIES
// =============================================================================

// View returns the summary of the given level under the current selections.
func (s *Session) View(level Level) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(level)
}

// CourseView is View(LevelCourse).
func (s *Session) CourseView() (View, error) { return s.View(LevelCourse) }

// CohortView is View(LevelCohort).
func (s *Session) CohortView() (View, error) { return s.View(LevelCohort) }

func (s *Session) viewLocked(level Level) (View, error) {
	if s.state != StateReady {
		return View{}, ErrNotReady
	}

	var keyColumn string
	switch level {
	case LevelCourse:
		if len(s.periods) == 0 {
			return View{Level: level, State: ViewAwaiting}, nil
		}
		keyColumn = types.CourseColumn
	case LevelCohort:
		if len(s.periods) == 0 || len(s.courses) == 0 {
			return View{Level: level, State: ViewAwaiting}, nil
		}
		keyColumn = types.EnrollmentYearColumn
	default:
		return View{}, fmt.Errorf("%w: %q", ErrUnknownLevel, level)
	}

	key := s.viewKey(level)
	if v, ok := s.views[key]; ok {
		return v, nil
	}

	rows := aggregate.Filter(s.canonical, types.PeriodColumn, s.periods)
	if level == LevelCohort {
		rows = aggregate.Filter(rows, types.CourseColumn, s.courses)
	}

	view := View{Level: level, State: ViewEmpty}
	if rows.Len() > 0 {
		view.State = ViewReady
		view.Summary = aggregate.Aggregate(rows, keyColumn)
	}

	s.views[key] = view
	s.metrics.SummaryComputed(string(level))
	return view, nil
}

// viewKey identifies a view by table generation, level and the selections
// the level depends on: periods for the course level, periods and courses
// for the cohort level. Selections are kept sorted, so equal selections give
// equal keys.
func (s *Session) viewKey(level Level) string {
	key := fmt.Sprintf("%d|%s|%s", s.generation, level, strings.Join(s.periods, "\x1f"))
	if level == LevelCohort {
		key += "|" + strings.Join(s.courses, "\x1f")
	}
	return key
}

// pruneViewsLocked drops memoized views that no longer match the current
// selections, so the map holds at most one view per level.
func (s *Session) pruneViewsLocked() {
	current := map[string]struct{}{
		s.viewKey(LevelCourse): {},
		s.viewKey(LevelCohort): {},
	}
	for key := range s.views {
		if _, ok := current[key]; !ok {
			delete(s.views, key)
		}
	}
}

// Export returns the XLSX bytes and download name of the given level.
func (s *Session) Export(level Level) ([]byte, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	view, err := s.viewLocked(level)
	if err != nil {
		return nil, "", err
	}
	if view.State != ViewReady {
		return nil, "", ErrNothingToExport
	}

	data, err := s.exporter.Export(view.Summary)
	if err != nil {
		return nil, "", fmt.Errorf("failed to export %s summary: %w", level, err)
	}
	return data, xlsxwriter.FileName(view.Summary.KeyColumn, level == LevelCohort), nil
}

// Serializations returns how many workbooks this session has built.
func (s *Session) Serializations() int64 {
	return s.exporter.Serializations()
}
