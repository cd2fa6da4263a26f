package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/EdgeCode/internal/conditions"
	"github.com/GriffinCanCode/EdgeCode/internal/fragment"
	"github.com/GriffinCanCode/EdgeCode/internal/logging"
	"github.com/GriffinCanCode/EdgeCode/internal/sandbox"
	"github.com/GriffinCanCode/EdgeCode/internal/shared/id"
)

// fakeStore is an in-memory Store for gateway tests. Error fields inject
// persistence failures.
type fakeStore struct {
	frags []*fragment.Fragment
	diags map[id.FragmentID]string

	fetchErr   error
	disableErr error
	diagErr    error
}

func newFakeStore(frags ...*fragment.Fragment) *fakeStore {
	return &fakeStore{frags: frags, diags: make(map[id.FragmentID]string)}
}

func (s *fakeStore) FetchActive(context.Context) ([]fragment.Fragment, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []fragment.Fragment
	for _, f := range s.frags {
		if f.Runnable() {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (s *fakeStore) Disable(_ context.Context, fragID id.FragmentID) error {
	if s.disableErr != nil {
		return s.disableErr
	}
	for _, f := range s.frags {
		if f.ID == fragID {
			f.Active = false
			return nil
		}
	}
	return fragment.ErrNotFound
}

func (s *fakeStore) PutDiagnostic(_ context.Context, fragID id.FragmentID, message string) error {
	if s.diagErr != nil {
		return s.diagErr
	}
	s.diags[fragID] = message
	return nil
}

func (s *fakeStore) Get(_ context.Context, fragID id.FragmentID) (*fragment.Fragment, error) {
	for _, f := range s.frags {
		if f.ID == fragID {
			cp := *f
			return &cp, nil
		}
	}
	return nil, fragment.ErrNotFound
}

func (s *fakeStore) GetBySlug(_ context.Context, slug string) (*fragment.Fragment, error) {
	for _, f := range s.frags {
		if f.Slug == slug {
			cp := *f
			return &cp, nil
		}
	}
	return nil, fragment.ErrNotFound
}

func (s *fakeStore) find(fragID id.FragmentID) *fragment.Fragment {
	for _, f := range s.frags {
		if f.ID == fragID {
			return f
		}
	}
	return nil
}

func testFragment(title string, kind fragment.Kind, source string) *fragment.Fragment {
	return &fragment.Fragment{
		ID:     id.NewFragmentID(),
		Title:  title,
		Slug:   fragment.Slugify(title),
		Kind:   kind,
		Source: source,
		Active: true,
		Mode:   fragment.ModeAutoInject,
	}
}

func newTestGateway(st *fakeStore) *Gateway {
	log := logging.NewNop()
	return New(st, conditions.NewEvaluator(log), sandbox.New(sandbox.DefaultConfig(), log), log, nil)
}

func testRequest() *PassContext {
	return NewPassContext(&conditions.StaticContext{
		DeviceClass: conditions.DeviceDesktop,
		RequestURL:  "https://example.com/",
	})
}

func TestPassRoutesKinds(t *testing.T) {
	logic := testFragment("Early Hook", fragment.KindServerLogic, `print("early");`)
	script := testFragment("Tracker", fragment.KindScript, `console.log("hi");`)
	style := testFragment("Theme", fragment.KindStylesheet, `body { color: red; }`)
	markup := testFragment("Banner", fragment.KindMarkup, `<p>sale</p>`)
	g := newTestGateway(newFakeStore(logic, script, style, markup))
	pctx := testRequest()
	ctx := context.Background()

	out, err := g.Pass(ctx, pctx, fragment.StageEarlyRequest)
	require.NoError(t, err)
	assert.Equal(t, "early", out)

	out, err = g.Pass(ctx, pctx, fragment.StageStyleEnqueue)
	require.NoError(t, err)
	assert.Equal(t, "<style>\nbody { color: red; }\n</style>\n", out)

	out, err = g.Pass(ctx, pctx, fragment.StageScriptEnqueue)
	require.NoError(t, err)
	assert.Contains(t, out, "<script>")
	assert.Contains(t, out, `console.log("hi");`)

	out, err = g.Pass(ctx, pctx, fragment.StageFooterRender)
	require.NoError(t, err)
	assert.Equal(t, "<p>sale</p>", out, "footer carries only the markup; the script already ran")
}

func TestPassOrdersByCreation(t *testing.T) {
	first := testFragment("First", fragment.KindMarkup, `<p>one</p>`)
	second := testFragment("Second", fragment.KindMarkup, `<p>two</p>`)
	g := newTestGateway(newFakeStore(first, second))

	out, err := g.Pass(context.Background(), testRequest(), fragment.StageHeadRender)
	require.NoError(t, err)
	assert.Equal(t, "<p>one</p><p>two</p>", out)
}

func TestPassExactlyOncePerRequest(t *testing.T) {
	logic := testFragment("Once", fragment.KindServerLogic, `print("x");`)
	g := newTestGateway(newFakeStore(logic))
	pctx := testRequest()
	ctx := context.Background()

	out, err := g.Pass(ctx, pctx, fragment.StageEarlyRequest)
	require.NoError(t, err)
	assert.Equal(t, "x", out)

	// Host fires the same stage hook again.
	out, err = g.Pass(ctx, pctx, fragment.StageEarlyRequest)
	require.NoError(t, err)
	assert.Empty(t, out)

	// A fresh request runs it again.
	out, err = g.Pass(ctx, testRequest(), fragment.StageEarlyRequest)
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestPassSkipsOnDemand(t *testing.T) {
	f := testFragment("Manual", fragment.KindMarkup, `<p>manual</p>`)
	f.Mode = fragment.ModeOnDemand
	g := newTestGateway(newFakeStore(f))

	for _, stage := range fragment.Stages() {
		out, err := g.Pass(context.Background(), testRequest(), stage)
		require.NoError(t, err)
		assert.Empty(t, out, "on-demand fragment must not run at %s", stage)
	}
}

func TestPassConditionsSkipIsNotAnError(t *testing.T) {
	f := testFragment("Mobile Only", fragment.KindMarkup, `<p>mobile</p>`)
	f.Conditions = `{"device_type":["mobile"]}`
	st := newFakeStore(f)
	g := newTestGateway(st)

	out, err := g.Pass(context.Background(), testRequest(), fragment.StageHeadRender)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.True(t, st.find(f.ID).Active, "a skipped fragment stays active")
}

func TestRuntimeFailureDisablesAndRecords(t *testing.T) {
	f := testFragment("Broken Hook", fragment.KindServerLogic, `throw new Error("boom");`)
	st := newFakeStore(f)
	g := newTestGateway(st)

	out, err := g.Pass(context.Background(), testRequest(), fragment.StageEarlyRequest)
	require.NoError(t, err)
	assert.Empty(t, out, "failed output is discarded")

	assert.False(t, st.find(f.ID).Active, "runtime failure disables the fragment")
	assert.Contains(t, st.diags[f.ID], "boom")

	// The next request no longer sees it; no retry loop.
	out, err = g.Pass(context.Background(), testRequest(), fragment.StageEarlyRequest)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRefusalStaysActive(t *testing.T) {
	f := testFragment("Shelling Out", fragment.KindServerLogic, `exec("ls");`)
	st := newFakeStore(f)
	g := newTestGateway(st)

	out, err := g.Pass(context.Background(), testRequest(), fragment.StageEarlyRequest)
	require.NoError(t, err)
	assert.Empty(t, out)

	assert.True(t, st.find(f.ID).Active, "a refusal is not a runtime failure")
	assert.Empty(t, st.diags)
}

func TestCodeGenerationRefusedNotDisabled(t *testing.T) {
	// Module loading and the Function constructor are refused statically;
	// they must never reach the VM, throw there, and trip the breaker.
	for _, src := range []string{`require("fs");`, `new Function("return 1")();`} {
		f := testFragment("Codegen", fragment.KindServerLogic, src)
		st := newFakeStore(f)
		g := newTestGateway(st)

		out, err := g.Pass(context.Background(), testRequest(), fragment.StageEarlyRequest)
		require.NoError(t, err)
		assert.Empty(t, out)

		assert.True(t, st.find(f.ID).Active, "source %q should be refused, not disabled", src)
		assert.Empty(t, st.diags)
	}
}

func TestScriptFailureNeverDisables(t *testing.T) {
	f := testFragment("Unclosed", fragment.KindScript, `function broken( {`)
	st := newFakeStore(f)
	g := newTestGateway(st)

	out, err := g.Pass(context.Background(), testRequest(), fragment.StageScriptEnqueue)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.True(t, st.find(f.ID).Active)
}

func TestPersistenceErrorsPropagate(t *testing.T) {
	f := testFragment("Broken Hook", fragment.KindServerLogic, `throw new Error("boom");`)

	t.Run("fetch", func(t *testing.T) {
		st := newFakeStore(f)
		st.fetchErr = errors.New("db locked")
		g := newTestGateway(st)
		_, err := g.Pass(context.Background(), testRequest(), fragment.StageEarlyRequest)
		assert.ErrorContains(t, err, "db locked")
	})

	t.Run("disable", func(t *testing.T) {
		st := newFakeStore(f)
		st.disableErr = errors.New("db locked")
		g := newTestGateway(st)
		_, err := g.Pass(context.Background(), testRequest(), fragment.StageEarlyRequest)
		assert.ErrorContains(t, err, "disable fragment")
	})

	t.Run("diagnostic", func(t *testing.T) {
		st := newFakeStore(f)
		st.diagErr = errors.New("db locked")
		g := newTestGateway(st)
		_, err := g.Pass(context.Background(), testRequest(), fragment.StageEarlyRequest)
		assert.ErrorContains(t, err, "record diagnostic")
	})
}

func TestTestRunNeverDisables(t *testing.T) {
	f := testFragment("Broken Hook", fragment.KindServerLogic, `throw new Error("boom");`)
	st := newFakeStore(f)
	g := newTestGateway(st)

	res := g.TestRun(context.Background(), f)
	assert.False(t, res.Success)
	assert.Contains(t, res.Err, "boom")

	assert.True(t, st.find(f.ID).Active)
	assert.Empty(t, st.diags)
}

func TestRenderMarkerBySlug(t *testing.T) {
	f := testFragment("Greeting", fragment.KindMarkup, `<p>hello</p>`)
	f.Mode = fragment.ModeOnDemand
	g := newTestGateway(newFakeStore(f))

	out, err := g.RenderMarker(context.Background(), testRequest(), MarkerRef{Slug: "greeting"})
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", out)
}

func TestRenderMarkerRefusesClientKinds(t *testing.T) {
	script := testFragment("Tracker", fragment.KindScript, `console.log("hi");`)
	style := testFragment("Theme", fragment.KindStylesheet, `body {}`)
	g := newTestGateway(newFakeStore(script, style))
	ctx := context.Background()

	for _, ref := range []MarkerRef{{ID: script.ID}, {ID: style.ID}} {
		anon := testRequest()
		out, err := g.RenderMarker(ctx, anon, ref)
		require.NoError(t, err)
		assert.Empty(t, out, "anonymous viewers see nothing")

		priv := testRequest()
		priv.Privileged = true
		out, err = g.RenderMarker(ctx, priv, ref)
		require.NoError(t, err)
		assert.Contains(t, out, "fragment-error")
		assert.Contains(t, out, "cannot run on demand")
	}
}

func TestRenderMarkerMissing(t *testing.T) {
	g := newTestGateway(newFakeStore())
	ctx := context.Background()

	out, err := g.RenderMarker(ctx, testRequest(), MarkerRef{Slug: "nope"})
	require.NoError(t, err)
	assert.Empty(t, out)

	priv := testRequest()
	priv.Privileged = true
	out, err = g.RenderMarker(ctx, priv, MarkerRef{Slug: "nope"})
	require.NoError(t, err)
	assert.Contains(t, out, "not found or inactive")
}

func TestRenderMarkerSkipsDeleted(t *testing.T) {
	f := testFragment("Trashed", fragment.KindMarkup, `<p>gone</p>`)
	f.Deleted = true
	g := newTestGateway(newFakeStore(f))

	priv := testRequest()
	priv.Privileged = true
	out, err := g.RenderMarker(context.Background(), priv, MarkerRef{ID: f.ID})
	require.NoError(t, err)
	assert.Contains(t, out, "not found or inactive")
}

func TestRenderMarkerConditionsSilent(t *testing.T) {
	f := testFragment("Members Only", fragment.KindMarkup, `<p>secret</p>`)
	f.Mode = fragment.ModeOnDemand
	f.Conditions = `{"auth_status":"authenticated"}`
	g := newTestGateway(newFakeStore(f))

	priv := testRequest()
	priv.Privileged = true
	out, err := g.RenderMarker(context.Background(), priv, MarkerRef{ID: f.ID})
	require.NoError(t, err)
	assert.Empty(t, out, "a condition miss renders nothing, even for admins")
}

func TestRenderMarkerFailureTripsBreaker(t *testing.T) {
	f := testFragment("Broken Widget", fragment.KindServerLogic, `missing();`)
	f.Mode = fragment.ModeOnDemand
	st := newFakeStore(f)
	g := newTestGateway(st)

	priv := testRequest()
	priv.Privileged = true
	out, err := g.RenderMarker(context.Background(), priv, MarkerRef{ID: f.ID})
	require.NoError(t, err)
	assert.Contains(t, out, "fragment-error")

	assert.False(t, st.find(f.ID).Active)
	assert.NotEmpty(t, st.diags[f.ID])
}

func TestParseMarkerRef(t *testing.T) {
	fragID := id.NewFragmentID()

	ref := ParseMarkerRef(string(fragID))
	assert.Equal(t, fragID, ref.ID)
	assert.Empty(t, ref.Slug)

	ref = ParseMarkerRef("greeting-banner")
	assert.Empty(t, ref.ID)
	assert.Equal(t, "greeting-banner", ref.Slug)
}

func TestScanMarkers(t *testing.T) {
	fragID := id.NewFragmentID()
	page := `<html><body>
		<div data-fragment="` + string(fragID) + `"></div>
		<span data-fragment="greeting"></span>
		<div data-fragment=""></div>
	</body></html>`

	refs, err := ScanMarkers(page)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, fragID, refs[0].ID)
	assert.Equal(t, "greeting", refs[1].Slug)
}

func TestReplaceMarkers(t *testing.T) {
	f := testFragment("Greeting", fragment.KindMarkup, `<p>hello</p>`)
	f.Mode = fragment.ModeOnDemand
	g := newTestGateway(newFakeStore(f))

	page := `<html><body><div data-fragment="greeting">placeholder</div><div data-fragment="nope"></div></body></html>`
	out, err := g.ReplaceMarkers(context.Background(), testRequest(), page)
	require.NoError(t, err)

	assert.Contains(t, out, "<p>hello</p>")
	assert.NotContains(t, out, "placeholder")
	assert.False(t, strings.Contains(out, "data-fragment"), "all markers resolved or removed")
}
