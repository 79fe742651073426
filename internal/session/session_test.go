package session

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/gradesum/internal/config"
	"github.com/ginjaninja78/gradesum/internal/converter"
	"github.com/ginjaninja78/gradesum/internal/logging"
	"github.com/ginjaninja78/gradesum/internal/metrics"
	"github.com/ginjaninja78/gradesum/internal/testutil"
	"github.com/ginjaninja78/gradesum/internal/types"
)

func newTestSession(t *testing.T, m *metrics.Metrics) *Session {
	t.Helper()
	conv := converter.New(config.Default().Ingest, logging.Discard(), m)
	return New("test", conv, logging.Discard(), m)
}

func loadedSession(t *testing.T, m *metrics.Metrics) *Session {
	t.Helper()
	s := newTestSession(t, m)
	data := testutil.GradeWorkbook(t,
		testutil.Record("2023Χ", "ΜΑΘ101", "2021004512", 7.5),
		testutil.Record("2023Χ", "ΜΑΘ101", "2022000001", 4),
		testutil.Record("2023Χ", "ΦΥΣ102", "2021000002", 9),
		testutil.Record("2023Ε", "ΜΑΘ101", "2020000003", "Α"),
		testutil.Record("2023Ε", "ΧΗΜ103", "2023001234", 5),
	)
	result := s.Ingest(context.Background(), []converter.Source{converter.BytesSource("grades.xlsx", data)})
	require.NoError(t, result.Err)
	return s
}

func TestSession_StartsWithoutData(t *testing.T) {
	s := newTestSession(t, nil)

	assert.Equal(t, StateNoData, s.Status().State)

	_, err := s.PeriodOptions()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.CourseView()
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = s.Preview(5)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSession_IngestReady(t *testing.T) {
	s := loadedSession(t, nil)

	st := s.Status()
	assert.Equal(t, StateReady, st.State)
	assert.Equal(t, 5, st.Rows)
	require.Len(t, st.Files, 1)
	assert.Equal(t, converter.OutcomeAccepted, st.Files[0].Outcome)

	periods, err := s.PeriodOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"2023Ε", "2023Χ"}, periods)

	rows, err := s.Preview(2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSession_NoPeriodsSelectedIsAwaiting(t *testing.T) {
	s := loadedSession(t, nil)

	view, err := s.CourseView()
	require.NoError(t, err)
	assert.Equal(t, ViewAwaiting, view.State)
	assert.Nil(t, view.Summary)

	view, err = s.CohortView()
	require.NoError(t, err)
	assert.Equal(t, ViewAwaiting, view.State)

	_, err = s.CourseOptions()
	assert.ErrorIs(t, err, ErrPeriodsRequired)

	_, _, err = s.Export(LevelCourse)
	assert.ErrorIs(t, err, ErrNothingToExport)
}

func TestSession_DrillDown(t *testing.T) {
	s := loadedSession(t, nil)

	require.NoError(t, s.SelectPeriods([]string{"2023Χ"}))

	courses, err := s.CourseOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"ΜΑΘ101", "ΦΥΣ102"}, courses)

	view, err := s.CourseView()
	require.NoError(t, err)
	require.Equal(t, ViewReady, view.State)
	assert.Equal(t, []types.SummaryRow{
		{Key: "ΜΑΘ101", Enrolled: 2, Participated: 2, Passed: 1},
		{Key: "ΦΥΣ102", Enrolled: 1, Participated: 1, Passed: 1},
	}, view.Summary.Rows)

	cohort, err := s.CohortView()
	require.NoError(t, err)
	assert.Equal(t, ViewAwaiting, cohort.State)

	require.NoError(t, s.SelectCourses([]string{"ΜΑΘ101"}))
	cohort, err = s.CohortView()
	require.NoError(t, err)
	require.Equal(t, ViewReady, cohort.State)
	assert.Equal(t, types.EnrollmentYearColumn, cohort.Summary.KeyColumn)
	assert.Equal(t, []types.SummaryRow{
		{Key: "202", Enrolled: 2, Participated: 2, Passed: 1},
	}, cohort.Summary.Rows)
}

func TestSession_AllPeriodsMatchesUnfiltered(t *testing.T) {
	s := loadedSession(t, nil)

	periods, err := s.PeriodOptions()
	require.NoError(t, err)
	require.NoError(t, s.SelectPeriods(periods))

	view, err := s.CourseView()
	require.NoError(t, err)
	assert.Equal(t, []types.SummaryRow{
		{Key: "ΜΑΘ101", Enrolled: 3, Participated: 2, Passed: 1},
		{Key: "ΦΥΣ102", Enrolled: 1, Participated: 1, Passed: 1},
		{Key: "ΧΗΜ103", Enrolled: 1, Participated: 1, Passed: 1},
	}, view.Summary.Rows)
}

func TestSession_RejectsUnknownSelection(t *testing.T) {
	s := loadedSession(t, nil)

	err := s.SelectPeriods([]string{"2023Χ", "1999"})
	var selErr *SelectionError
	require.True(t, errors.As(err, &selErr))
	assert.ErrorIs(t, err, ErrUnknownSelection)
	assert.Equal(t, []string{"1999"}, selErr.Values)
	assert.Empty(t, s.SelectedPeriods(), "a rejected selection must not be applied")

	require.NoError(t, s.SelectPeriods([]string{"2023Ε"}))
	err = s.SelectCourses([]string{"ΦΥΣ102"})
	assert.ErrorIs(t, err, ErrUnknownSelection)
}

func TestSession_CoursesRequirePeriods(t *testing.T) {
	s := loadedSession(t, nil)

	assert.ErrorIs(t, s.SelectCourses([]string{"ΜΑΘ101"}), ErrPeriodsRequired)
	assert.NoError(t, s.SelectCourses(nil))
}

func TestSession_ChangingPeriodsPrunesCourses(t *testing.T) {
	s := loadedSession(t, nil)

	require.NoError(t, s.SelectPeriods([]string{"2023Χ", "2023Ε"}))
	require.NoError(t, s.SelectCourses([]string{"ΦΥΣ102", "ΜΑΘ101", "ΜΑΘ101"}))
	assert.Equal(t, []string{"ΜΑΘ101", "ΦΥΣ102"}, s.SelectedCourses())

	require.NoError(t, s.SelectPeriods([]string{"2023Ε"}))
	assert.Equal(t, []string{"ΜΑΘ101"}, s.SelectedCourses())

	require.NoError(t, s.SelectPeriods(nil))
	assert.Empty(t, s.SelectedCourses())
}

func TestSession_PrunedCoursesAwait(t *testing.T) {
	s := newTestSession(t, nil)
	data := testutil.GradeWorkbook(t,
		testutil.Record("P1", "C1", "2020", 5),
		testutil.Record("P2", "C2", "2020", 5),
	)
	require.NoError(t, s.Ingest(context.Background(), []converter.Source{converter.BytesSource("g.xlsx", data)}).Err)

	require.NoError(t, s.SelectPeriods([]string{"P1", "P2"}))
	require.NoError(t, s.SelectCourses([]string{"C2"}))
	require.NoError(t, s.SelectPeriods([]string{"P1"}))

	view, err := s.CohortView()
	require.NoError(t, err)
	assert.Equal(t, ViewAwaiting, view.State, "C2 was pruned, so the cohort level awaits a course")
}

func TestSession_ViewsAreMemoized(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := loadedSession(t, m)
	require.NoError(t, s.SelectPeriods([]string{"2023Χ"}))

	first, err := s.CourseView()
	require.NoError(t, err)
	second, err := s.CourseView()
	require.NoError(t, err)

	assert.Same(t, first.Summary, second.Summary)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Summaries.WithLabelValues(string(LevelCourse))))

	require.NoError(t, s.SelectPeriods([]string{"2023Ε"}))
	third, err := s.CourseView()
	require.NoError(t, err)
	assert.NotSame(t, first.Summary, third.Summary)
}

func TestSession_CourseViewIgnoresCourseSelection(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := loadedSession(t, m)
	require.NoError(t, s.SelectPeriods([]string{"2023Χ"}))

	first, err := s.CourseView()
	require.NoError(t, err)

	for _, course := range []string{"ΜΑΘ101", "ΦΥΣ102", "ΜΑΘ101"} {
		require.NoError(t, s.SelectCourses([]string{course}))
		_, err := s.CohortView()
		require.NoError(t, err)

		again, err := s.CourseView()
		require.NoError(t, err)
		assert.Same(t, first.Summary, again.Summary)
	}

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Summaries.WithLabelValues(string(LevelCourse))))

	s.mu.Lock()
	cached := len(s.views)
	s.mu.Unlock()
	assert.LessOrEqual(t, cached, 2)
}

func TestSession_ExportIsCached(t *testing.T) {
	s := loadedSession(t, nil)
	require.NoError(t, s.SelectPeriods([]string{"2023Χ"}))
	require.NoError(t, s.SelectCourses([]string{"ΜΑΘ101"}))

	data, name, err := s.Export(LevelCourse)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "summary_by_Μάθημα.xlsx", name)

	_, _, err = s.Export(LevelCourse)
	require.NoError(t, err)
	assert.EqualValues(t, 1, s.Serializations())

	_, name, err = s.Export(LevelCohort)
	require.NoError(t, err)
	assert.Equal(t, "summary_by_Έτος Εγγραφής_filtered.xlsx", name)
	assert.EqualValues(t, 2, s.Serializations())

	_, _, err = s.Export(Level("bogus"))
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestSession_FailedIngestClearsState(t *testing.T) {
	s := loadedSession(t, nil)
	require.NoError(t, s.SelectPeriods([]string{"2023Χ"}))

	result := s.Ingest(context.Background(), []converter.Source{
		converter.BytesSource("broken.xlsx", []byte("not a workbook")),
	})

	require.Error(t, result.Err)
	st := s.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.NotEmpty(t, st.Error)
	assert.Zero(t, st.Rows)
	assert.Empty(t, st.SelectedPeriods)

	_, err := s.PeriodOptions()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSession_Reset(t *testing.T) {
	s := loadedSession(t, nil)
	require.NoError(t, s.SelectPeriods([]string{"2023Χ"}))
	_, _, err := s.Export(LevelCourse)
	require.NoError(t, err)

	s.Reset()

	st := s.Status()
	assert.Equal(t, StateNoData, st.State)
	assert.Empty(t, st.Files)
	assert.Empty(t, st.SelectedPeriods)
	_, err = s.CourseView()
	assert.ErrorIs(t, err, ErrNotReady)
}
