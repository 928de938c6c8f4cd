package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tatianab/dreamcage/internal/models"
)

type nextCall struct {
	action string
	mode   models.Mode
	stats  models.PlayerStats
}

// fakeOracle serves scripted scenes and records what the session sent it.
type fakeOracle struct {
	mu sync.Mutex

	opening    *models.Scene
	openingErr error

	next    []*models.Scene
	nextErr error

	image    string
	imageErr error

	nextCalls   []nextCall
	imageCalls  []string
	blockNext   chan struct{} // if set, NextScene waits on it
	enteredNext chan struct{} // closed when NextScene is reached
}

func (f *fakeOracle) OpeningScene(ctx context.Context, playerName string) (*models.Scene, error) {
	if f.openingErr != nil {
		return nil, f.openingErr
	}
	sc := *f.opening
	return &sc, nil
}

func (f *fakeOracle) NextScene(ctx context.Context, history []models.HistoryEntry, action string, mode models.Mode, stats models.PlayerStats) (*models.Scene, error) {
	f.mu.Lock()
	f.nextCalls = append(f.nextCalls, nextCall{action: action, mode: mode, stats: stats})
	entered := f.enteredNext
	block := f.blockNext
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		<-block
	}
	if f.nextErr != nil {
		return nil, f.nextErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.next) == 0 {
		return nil, errors.New("fakeOracle: no scene scripted")
	}
	sc := *f.next[0]
	f.next = f.next[1:]
	return &sc, nil
}

func (f *fakeOracle) RenderImage(ctx context.Context, visualCue string) (string, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, visualCue)
	f.mu.Unlock()
	return f.image, f.imageErr
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []models.SFXKind
}

func (f *fakeNotifier) Play(kind models.SFXKind) {
	f.mu.Lock()
	f.kinds = append(f.kinds, kind)
	f.mu.Unlock()
}

func (f *fakeNotifier) last() models.SFXKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.kinds) == 0 {
		return -1
	}
	return f.kinds[len(f.kinds)-1]
}

type fakeRecorder struct {
	mu      sync.Mutex
	started []string
	entries []models.HistoryEntry
	markers []string
}

func (f *fakeRecorder) SessionStarted(player string) {
	f.mu.Lock()
	f.started = append(f.started, player)
	f.mu.Unlock()
}

func (f *fakeRecorder) EntryAppended(e models.HistoryEntry) {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
}

func (f *fakeRecorder) SessionEnded(marker string) {
	f.mu.Lock()
	f.markers = append(f.markers, marker)
	f.mu.Unlock()
}

func testScene(title string, upd *models.StatUpdates) *models.Scene {
	return &models.Scene{
		Title:     title,
		Narrative: title + " narrative",
		VisualCue: "a dim corridor",
		Choices: []models.Choice{
			{ID: "go", Text: "往前走", Type: models.ChoiceMovement},
			{ID: "look", Text: "观察四周", Type: models.ChoiceInteraction},
		},
		StatUpdates: upd,
	}
}

func TestStartProducesOpeningState(t *testing.T) {
	oracle := &fakeOracle{opening: testScene("opening", nil), image: "data:image/png;base64,xx"}
	s := New(oracle, nil, nil, nil)

	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(); got != StatePlaying {
		t.Fatalf("state = %v, want playing", got)
	}
	stats := s.Stats()
	if stats.PlayerName != "Ava" {
		t.Errorf("player name = %q", stats.PlayerName)
	}
	if stats.Level != 1 || stats.CurrentAct != models.ActOne {
		t.Errorf("level/act = %d/%v, want 1/act one", stats.Level, stats.CurrentAct)
	}
	if stats.SyncRate != 100 || stats.NoiseLevel != 10 {
		t.Errorf("sync/noise = %d/%d, want 100/10", stats.SyncRate, stats.NoiseLevel)
	}
	if len(s.History()) != 0 {
		t.Errorf("history not empty after opening")
	}
	sc := s.Scene()
	if sc == nil || sc.Title != "opening" {
		t.Fatalf("scene = %+v", sc)
	}
	if sc.ImageURL != "data:image/png;base64,xx" {
		t.Errorf("image not resolved: %q", sc.ImageURL)
	}
}

func TestStartDefaultsBlankName(t *testing.T) {
	oracle := &fakeOracle{opening: testScene("opening", nil)}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "   "); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.Stats().PlayerName; got != DefaultPlayerName {
		t.Errorf("player name = %q, want %q", got, DefaultPlayerName)
	}
}

func TestLoudChoiceCommitsNoiseBeforeGenerator(t *testing.T) {
	oracle := &fakeOracle{
		opening: testScene("opening", nil),
		next:    []*models.Scene{testScene("turn", &models.StatUpdates{NoiseLevel: 10, SyncRate: -30})},
	}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	choice := s.Scene().Choices[0]
	if err := s.SubmitChoice(context.Background(), choice, models.ModeLoud); err != nil {
		t.Fatalf("SubmitChoice: %v", err)
	}

	if len(oracle.nextCalls) != 1 {
		t.Fatalf("generator called %d times", len(oracle.nextCalls))
	}
	sent := oracle.nextCalls[0]
	if sent.stats.NoiseLevel != 30 {
		t.Errorf("generator saw noise %d, want 30 (10 + loud 20)", sent.stats.NoiseLevel)
	}
	if sent.stats.SyncRate != 100 {
		t.Errorf("generator saw sync %d, want 100", sent.stats.SyncRate)
	}
	if sent.mode != models.ModeLoud || sent.action != choice.Text {
		t.Errorf("generator saw mode=%v action=%q", sent.mode, sent.action)
	}

	stats := s.Stats()
	if stats.NoiseLevel != 40 {
		t.Errorf("noise = %d, want 40", stats.NoiseLevel)
	}
	if stats.SyncRate != 70 {
		t.Errorf("sync = %d, want 70", stats.SyncRate)
	}
	if stats.Level != 2 {
		t.Errorf("level = %d, want 2", stats.Level)
	}
	if got := s.State(); got != StatePlaying {
		t.Errorf("state = %v, want playing", got)
	}

	history := s.History()
	if len(history) != 2 {
		t.Fatalf("history has %d entries, want 2", len(history))
	}
	if history[0].Role != models.RoleSystem || history[0].Content != "opening narrative" {
		t.Errorf("first entry = %+v", history[0])
	}
	if history[1].Role != models.RoleUser || !strings.HasPrefix(history[1].Content, "[ACTION: LOUD] ") {
		t.Errorf("second entry = %+v", history[1])
	}
}

func TestRawSyncZeroEndsGame(t *testing.T) {
	oracle := &fakeOracle{
		opening: testScene("opening", &models.StatUpdates{SyncRate: -80}),
		next:    []*models.Scene{testScene("drain", &models.StatUpdates{SyncRate: -25})},
	}
	notify := &fakeNotifier{}
	record := &fakeRecorder{}
	s := New(oracle, notify, record, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.Stats().SyncRate; got != 20 {
		t.Fatalf("sync after opening = %d, want 20", got)
	}

	if err := s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeSilent); err != nil {
		t.Fatalf("SubmitChoice: %v", err)
	}
	if got := s.State(); got != StateGameOver {
		t.Fatalf("state = %v, want game over", got)
	}
	if got := s.Stats().SyncRate; got != 0 {
		t.Errorf("stored sync = %d, want 0", got)
	}
	if got := notify.last(); got != models.SFXAlert {
		t.Errorf("last cue = %v, want alert", got)
	}
	record.mu.Lock()
	markers := append([]string(nil), record.markers...)
	record.mu.Unlock()
	if len(markers) != 1 || markers[0] != "game_over" {
		t.Errorf("markers = %v", markers)
	}
}

func TestVictoryScene(t *testing.T) {
	win := testScene("dawn", nil)
	win.Victory = true
	win.Choices = nil
	oracle := &fakeOracle{opening: testScene("opening", nil), next: []*models.Scene{win}}
	notify := &fakeNotifier{}
	record := &fakeRecorder{}
	s := New(oracle, notify, record, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeSilent); err != nil {
		t.Fatalf("SubmitChoice: %v", err)
	}
	if got := s.State(); got != StateVictory {
		t.Fatalf("state = %v, want victory", got)
	}
	if got := notify.last(); got != models.SFXConfirm {
		t.Errorf("last cue = %v, want confirm", got)
	}
	record.mu.Lock()
	defer record.mu.Unlock()
	if len(record.markers) != 1 || record.markers[0] != "victory" {
		t.Errorf("markers = %v", record.markers)
	}
}

func TestGameOverBeatsVictory(t *testing.T) {
	end := testScene("collapse", nil)
	end.GameOver = true
	end.Victory = true
	oracle := &fakeOracle{opening: testScene("opening", nil), next: []*models.Scene{end}}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeSilent); err != nil {
		t.Fatalf("SubmitChoice: %v", err)
	}
	if got := s.State(); got != StateGameOver {
		t.Errorf("state = %v, want game over", got)
	}
}

func TestResetRestoresBaseline(t *testing.T) {
	end := testScene("collapse", nil)
	end.GameOver = true
	oracle := &fakeOracle{
		opening: testScene("opening", nil),
		next:    []*models.Scene{end},
	}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeLoud); err != nil {
		t.Fatalf("SubmitChoice: %v", err)
	}

	s.Reset()
	if got := s.State(); got != StateSetup {
		t.Fatalf("state = %v, want setup", got)
	}
	if s.Scene() != nil || len(s.History()) != 0 {
		t.Errorf("scene/history survived reset")
	}
	stats := s.Stats()
	want := models.InitialStats("")
	if stats.SyncRate != want.SyncRate || stats.NoiseLevel != want.NoiseLevel || stats.Level != want.Level {
		t.Errorf("stats after reset = %+v", stats)
	}

	// A second run starts from the same baseline as the first.
	if err := s.Start(context.Background(), "Noor"); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	stats = s.Stats()
	if stats.Level != 1 || stats.NoiseLevel != 10 || stats.SyncRate != 100 {
		t.Errorf("second run stats = %+v", stats)
	}
}

func TestSubmitRejectedOutsidePlaying(t *testing.T) {
	oracle := &fakeOracle{opening: testScene("opening", nil)}
	s := New(oracle, nil, nil, nil)

	err := s.SubmitChoice(context.Background(), models.Choice{Text: "x"}, models.ModeSilent)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("submit in setup: %v, want ErrNotReady", err)
	}
}

func TestSubmitRejectedWhileProcessing(t *testing.T) {
	oracle := &fakeOracle{
		opening:     testScene("opening", nil),
		next:        []*models.Scene{testScene("turn", nil)},
		blockNext:   make(chan struct{}),
		enteredNext: make(chan struct{}),
	}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeSilent)
	}()

	select {
	case <-oracle.enteredNext:
	case <-time.After(2 * time.Second):
		t.Fatal("generator never called")
	}

	if err := s.SubmitChoice(context.Background(), s.Scene().Choices[1], models.ModeLoud); !errors.Is(err, ErrNotReady) {
		t.Fatalf("duplicate submit: %v, want ErrNotReady", err)
	}

	close(oracle.blockNext)
	if err := <-done; err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if got := s.Stats().Level; got != 2 {
		t.Errorf("level = %d, want 2", got)
	}
}

func TestStartFailureRevertsToSetup(t *testing.T) {
	oracle := &fakeOracle{openingErr: fmt.Errorf("connection reset")}
	notify := &fakeNotifier{}
	s := New(oracle, notify, nil, nil)

	if err := s.Start(context.Background(), "Ava"); err == nil {
		t.Fatal("Start succeeded with failing generator")
	}
	if got := s.State(); got != StateSetup {
		t.Fatalf("state = %v, want setup", got)
	}
	if got := notify.last(); got != models.SFXAlert {
		t.Errorf("last cue = %v, want alert", got)
	}
}

func TestTurnFailureKeepsScene(t *testing.T) {
	oracle := &fakeOracle{opening: testScene("opening", nil), nextErr: fmt.Errorf("timeout")}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err := s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeSilent)
	if err == nil {
		t.Fatal("submit succeeded with failing generator")
	}
	if got := s.State(); got != StatePlaying {
		t.Errorf("state = %v, want playing", got)
	}
	if sc := s.Scene(); sc == nil || sc.Title != "opening" {
		t.Errorf("scene changed after failure: %+v", sc)
	}
	if s.Processing() {
		t.Error("processing guard left up after failure")
	}

	// The guard is down, so a retry reaches the generator again.
	oracle.nextErr = nil
	oracle.next = []*models.Scene{testScene("turn", nil)}
	if err := s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeSilent); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestBackgroundOverrideSkipsImage(t *testing.T) {
	oracle := &fakeOracle{opening: testScene("opening", nil), image: "data:image/png;base64,xx"}
	cfg := models.DefaultUserConfig()
	cfg.SceneBackgrounds[models.SlotActOne] = "https://example.com/act1.png"
	s := New(oracle, nil, nil, func() models.UserConfig { return cfg })

	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(oracle.imageCalls) != 0 {
		t.Errorf("image generated despite background override: %v", oracle.imageCalls)
	}
	if got := s.Scene().ImageURL; got != "" {
		t.Errorf("scene image = %q, want empty", got)
	}
}

func TestImageFailureIsNonFatal(t *testing.T) {
	oracle := &fakeOracle{opening: testScene("opening", nil), imageErr: fmt.Errorf("quota")}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := s.State(); got != StatePlaying {
		t.Errorf("state = %v, want playing", got)
	}
	if got := s.Scene().ImageURL; got != "" {
		t.Errorf("image = %q, want empty", got)
	}
}

func TestSnapshotRestore(t *testing.T) {
	oracle := &fakeOracle{
		opening: testScene("opening", nil),
		next:    []*models.Scene{testScene("turn", &models.StatUpdates{Item: "黄铜钥匙"})},
	}
	s := New(oracle, nil, nil, nil)
	if err := s.Start(context.Background(), "Ava"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.SubmitChoice(context.Background(), s.Scene().Choices[0], models.ModeSilent); err != nil {
		t.Fatalf("SubmitChoice: %v", err)
	}

	snap := s.Snapshot()

	restored := New(oracle, nil, nil, nil)
	restored.Restore(snap)
	if got := restored.State(); got != StatePlaying {
		t.Fatalf("restored state = %v, want playing", got)
	}
	stats := restored.Stats()
	if stats.Level != 2 || len(stats.Inventory) != 1 || stats.Inventory[0] != "黄铜钥匙" {
		t.Errorf("restored stats = %+v", stats)
	}
	if got := len(restored.History()); got != 2 {
		t.Errorf("restored history has %d entries", got)
	}
	if sc := restored.Scene(); sc == nil || sc.Title != "turn" {
		t.Errorf("restored scene = %+v", sc)
	}
}
