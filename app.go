package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/peternagy/chromapal/internal/chroma"
	"github.com/peternagy/chromapal/internal/config"
	"github.com/peternagy/chromapal/internal/connection"
	"github.com/peternagy/chromapal/internal/core"
	"github.com/peternagy/chromapal/internal/credential"
	"github.com/peternagy/chromapal/internal/debug"
	"github.com/peternagy/chromapal/internal/export"
	"github.com/peternagy/chromapal/internal/logging"
	"github.com/peternagy/chromapal/internal/performance"
	"github.com/peternagy/chromapal/internal/storage"
	"github.com/peternagy/chromapal/internal/types"
	"github.com/peternagy/chromapal/internal/viewer"
)

// =============================================================================
// Type Re-exports for Wails Binding Generation
// =============================================================================

type ConnectionProfile = types.ConnectionProfile
type ConnectionStatus = types.ConnectionStatus
type CollectionRef = types.CollectionRef
type ViewModel = types.ViewModel
type ExportResult = types.ExportResult
type Metrics = performance.Metrics

// =============================================================================
// App - Thin Facade for Wails Bindings
// =============================================================================

// App struct holds the application state and services
type App struct {
	state       *core.AppState
	settings    *config.Settings
	logger      *zap.Logger
	storage     *storage.Service
	profiles    *storage.ProfileService
	credential  *credential.Service
	connection  *connection.Service
	viewer      *viewer.Service
	export      *export.Service
	performance *performance.Service
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		state:      core.NewAppState(),
		settings:   config.Default(),
		logger:     zap.NewNop(),
		credential: credential.NewService(),
	}
}

// startup is called when the app starts
func (a *App) startup(ctx context.Context) {
	a.state.Ctx = ctx
	a.state.Emitter = &core.WailsEventEmitter{Ctx: ctx}
	debug.Init(ctx)

	configDir := storage.InitConfigDir()

	settings, err := config.Load(configDir)
	if err != nil {
		settings = config.Default()
	}
	logger, logErr := logging.New(settings.LoggingConfig())
	if logErr != nil {
		logger = zap.NewNop()
	}
	if err != nil {
		logger.Warn("failed to load settings, using defaults", zap.Error(err))
	}

	a.initServices(configDir, settings, logger)
	a.logger.Info("started", zap.String("configDir", configDir))
}

// initServices wires every service against configDir. It does not touch the
// Wails runtime.
func (a *App) initServices(configDir string, settings *config.Settings, logger *zap.Logger) {
	a.settings = settings
	a.logger = logger
	a.state.ConfigDir = configDir

	debug.SetLogger(logger)
	debug.SetEnabled(settings.Debug.Enabled)

	a.storage = storage.NewService(configDir)
	a.profiles = storage.NewProfileService(a.state, a.storage)
	a.profiles.Load()

	a.performance = performance.NewService(a.state)
	a.connection = connection.NewService(a.state, a.credential,
		chroma.WithObserver(a.performance),
		chroma.WithLogger(logger.Named("chroma")),
		chroma.WithFallbackLimit(settings.Viewer.FallbackLimit),
	)
	a.viewer = viewer.NewService(a.state, viewer.Settings{
		PageSize:   settings.Viewer.PageSize,
		PageSizes:  settings.Viewer.PageSizes,
		WindowSize: settings.Viewer.WindowSize,
	})
	a.export = export.NewService(a.state, a.viewer)
}

// shutdown is called when the app is closing
func (a *App) shutdown(ctx context.Context) {
	if a.viewer != nil {
		a.viewer.Reset()
	}
	if a.connection != nil {
		a.connection.Shutdown(ctx)
	}
	_ = a.logger.Sync()
}

// =============================================================================
// Profile Methods
// =============================================================================

func (a *App) GetProfile() ConnectionProfile {
	return a.profiles.Get()
}

// SaveProfile persists the profile. A changed base URL drops the active
// connection so it is never used against the old server.
func (a *App) SaveProfile(profile ConnectionProfile) (ConnectionProfile, error) {
	before := a.profiles.Get().BaseURL()
	saved, err := a.profiles.Save(profile)
	if err != nil {
		return saved, err
	}
	if saved.BaseURL() != before && a.state.HasClient() {
		a.Disconnect()
	}
	return saved, nil
}

func (a *App) SetAuthToken(token string) error {
	return a.credential.SetToken(a.profiles.Get().BaseURL(), token)
}

func (a *App) HasAuthToken() bool {
	return a.credential.HasToken(a.profiles.Get().BaseURL())
}

// =============================================================================
// Connection Methods
// =============================================================================

func (a *App) TestConnection(profile ConnectionProfile) error {
	return a.connection.TestConnection(profile)
}

// Connect connects with the active profile, dropping any open collection view.
func (a *App) Connect() ([]CollectionRef, error) {
	a.viewer.Reset()
	return a.connection.Connect()
}

// Disconnect cancels in-flight fetches and drops the active connection.
func (a *App) Disconnect() {
	a.viewer.Reset()
	a.connection.Disconnect()
}

func (a *App) GetConnectionStatus() ConnectionStatus {
	return a.connection.GetConnectionStatus()
}

func (a *App) ListCollections() ([]CollectionRef, error) {
	return a.connection.ListCollections()
}

// =============================================================================
// Viewer Methods
// =============================================================================

func (a *App) SelectCollection(collectionID string) (*ViewModel, error) {
	return a.viewer.SelectCollection(collectionID)
}

func (a *App) GoToPage(page int) (*ViewModel, error) {
	return a.viewer.GoToPage(page)
}

func (a *App) NextPage() (*ViewModel, error) {
	return a.viewer.NextPage()
}

func (a *App) PrevPage() (*ViewModel, error) {
	return a.viewer.PrevPage()
}

func (a *App) FirstPage() (*ViewModel, error) {
	return a.viewer.FirstPage()
}

func (a *App) LastPage() (*ViewModel, error) {
	return a.viewer.LastPage()
}

func (a *App) ChangePageSize(size int) (*ViewModel, error) {
	return a.viewer.ChangePageSize(size)
}

func (a *App) GetPageSizes() []int {
	return a.viewer.PageSizes()
}

func (a *App) Search(term string) (*ViewModel, error) {
	return a.viewer.ApplySearch(term)
}

func (a *App) ClearSearch() *ViewModel {
	return a.viewer.ClearSearch()
}

func (a *App) Refresh() (*ViewModel, error) {
	return a.viewer.Refresh()
}

func (a *App) GetViewModel() *ViewModel {
	return a.viewer.GetViewModel()
}

func (a *App) GetRawJSON() (string, error) {
	return a.viewer.RawJSON()
}

// =============================================================================
// Export Methods
// =============================================================================

func (a *App) ExportPageAsJSON() (*ExportResult, error) {
	return a.export.ExportPageAsJSON(a.currentPage())
}

func (a *App) ExportPageAsCSV() (*ExportResult, error) {
	return a.export.ExportPageAsCSV(a.currentPage())
}

func (a *App) RevealInFinder(filePath string) error {
	return a.export.RevealInFinder(filePath)
}

func (a *App) currentPage() int {
	return a.viewer.GetViewModel().State.CurrentPage
}

// =============================================================================
// Diagnostics Methods
// =============================================================================

func (a *App) GetMetrics() *Metrics {
	return a.performance.GetMetrics()
}

// ForceGC runs a garbage collection and returns the metrics taken after it.
func (a *App) ForceGC() *Metrics {
	a.performance.ForceGC()
	return a.performance.GetMetrics()
}

func (a *App) SetDebugEnabled(enabled bool) {
	debug.SetEnabled(enabled)
	a.logger.Info("debug events toggled", zap.Bool("enabled", enabled))
}

func (a *App) GetSettings() config.Settings {
	return *a.settings
}

func (a *App) GetVersion() string {
	return fmt.Sprintf("chromapal %s", version)
}
