package acquisition

import (
	"context"
	"errors"
	"sync"
	"time"

	"serialpha/src/export"
	"serialpha/src/framing"
	"serialpha/src/helpers"
	"serialpha/src/interfaces"
	"serialpha/src/logger"
	"serialpha/src/models"
	"serialpha/src/parser"
	"serialpha/src/profile"
	"serialpha/src/sampling"
	"serialpha/src/session"
	"serialpha/src/transport"
	"serialpha/src/utils"
)

// Message types pushed to listeners
const (
	TypeInitial = "INITIAL"
	TypeUpdate  = "UPDATE"
	TypeAlert   = "ALERT"
)

const (
	softErrorBackoff = 100 * time.Millisecond
	recentRecords    = 50
)

// -----------------------------------------------------------------------------

// Options wires a Controller to its collaborators. Exchange may be nil.
type Options struct {
	Config   *models.MConfig
	Registry *profile.Registry
	Gateway  interfaces.IPersistenceGateway
	Opener   interfaces.ITransportOpener
	Sink     *export.CSVSink
	Exchange interfaces.IDataExchanger
	Errors   *helpers.ErrorHandler
}

// ConnectRequest carries the operator's connection choices.
type ConnectRequest struct {
	Port          string `json:"port"`
	IntervalValue string `json:"interval_value"`
	IntervalUnit  string `json:"interval_unit"`
}

// connection is everything owned by one open transport.
type connection struct {
	transport interfaces.ITransport
	framer    *framing.Framer
	parser    *parser.Parser
	scheduler *sampling.Scheduler
	profile   models.MProfile
	period    time.Duration
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// -----------------------------------------------------------------------------

// Controller runs one acquisition session: it owns the connection
// lifecycle and routes operator actions to the session.
type Controller struct {
	cfg       *models.MConfig
	registry  *profile.Registry
	gateway   interfaces.IPersistenceGateway
	opener    interfaces.ITransportOpener
	sink      *export.CSVSink
	exchange  interfaces.IDataExchanger
	errors    *helpers.ErrorHandler
	session   *session.Session
	persister *session.Persister
	logger    *logger.Logger

	// opMu serializes connect and teardown sequences
	opMu sync.Mutex

	mu           sync.RWMutex
	conn         *connection
	exportFolder string
	recent       *utils.RingBuffer[string]

	metrics pipelineMetrics
	now     func() time.Time
}

// -----------------------------------------------------------------------------

func NewController(opts Options) *Controller {
	if opts.Config == nil {
		opts.Config = &models.MConfig{}
	}
	if opts.Registry == nil {
		opts.Registry = profile.NewRegistry()
	}
	if opts.Errors == nil {
		opts.Errors = helpers.NewErrorHandler()
	}
	if opts.Sink == nil {
		opts.Sink = export.NewCSVSink(opts.Config.Export.FallbackDir)
	}

	selected, _ := opts.Registry.Selected()
	s := session.NewSession(selected)

	return &Controller{
		cfg:          opts.Config,
		registry:     opts.Registry,
		gateway:      opts.Gateway,
		opener:       opts.Opener,
		sink:         opts.Sink,
		exchange:     opts.Exchange,
		errors:       opts.Errors,
		session:      s,
		persister:    session.NewPersister(s, opts.Gateway, opts.Errors),
		logger:       logger.NewLogger(opts.Config, "Acquisition"),
		exportFolder: opts.Config.Export.Folder,
		recent:       utils.NewRingBuffer[string](recentRecords),
		now:          time.Now,
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start launches the background persister.
func (c *Controller) Start(ctx context.Context) {
	c.persister.Start(ctx)
}

// Shutdown closes any open connection, saves the session and writes an
// "autosave" export when there is data.
func (c *Controller) Shutdown() {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn != nil {
		c.teardown(conn)
	}

	c.persister.Stop()
	c.persister.Flush("shutdown")

	if !c.session.IsEmpty() {
		if _, err := c.ExportNow(export.PrefixAutosave); err != nil {
			c.errors.Handle(err, "export:autosave")
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

// ValidateInterval checks an interval against the selected profile.
func (c *Controller) ValidateInterval(value, unit string) (time.Duration, error) {
	p, _ := c.registry.Selected()
	return sampling.ValidateInterval(value, unit, &p)
}

// -----------------------------------------------------------------------------

// Connect validates the interval, opens the transport and starts reading and
// sampling. Nothing is started when validation or opening fails.
func (c *Controller) Connect(ctx context.Context, req ConnectRequest) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Connected() {
		return helpers.NewConfigurationError("already connected")
	}
	if c.opener == nil {
		return helpers.NewConfigurationError("no transport configured")
	}

	p, _ := c.registry.Selected()
	interval, err := sampling.ValidateInterval(req.IntervalValue, req.IntervalUnit, &p)
	if err != nil {
		return err
	}
	period := sampling.EffectivePeriod(interval, &p)

	framer, err := framing.NewFramer(p.Parser.LineTerminator, c.cfg.Transport.MaxBufferBytes)
	if err != nil {
		return helpers.NewConfigurationError("profile %q: %v", p.Name, err)
	}

	port := req.Port
	if port == "" {
		port = c.cfg.Transport.Port
	}
	tr, err := c.opener.Open(ctx, p, port)
	if err != nil {
		return err
	}

	conn := &connection{
		transport: tr,
		framer:    framer,
		parser:    parser.NewParser(p),
		profile:   p,
		period:    period,
	}
	conn.scheduler, err = sampling.NewScheduler(period, c.onTick)
	if err != nil {
		tr.Close()
		return err
	}

	c.session.SetProfile(p)

	connCtx, cancel := context.WithCancel(context.Background())
	conn.cancel = cancel

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	conn.wg.Add(1)
	go c.readLoop(connCtx, conn)
	conn.scheduler.Start(connCtx)

	c.logger.Info("Connected %s with profile %q, sampling every %s",
		tr.Describe(), p.Name, sampling.FormatInterval(float64(conn.scheduler.Period().Milliseconds())))
	c.persister.Request("connect")
	c.publish(TypeUpdate, "")
	return nil
}

// -----------------------------------------------------------------------------

// Disconnect stops reading and sampling. The series are kept.
func (c *Controller) Disconnect() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return helpers.NewConfigurationError("not connected")
	}

	if c.teardown(conn) {
		c.logger.Info("Disconnected")
		c.persister.Request("disconnect")
		c.publish(TypeUpdate, "")
	}
	return nil
}

// -----------------------------------------------------------------------------

// teardown stops conn. It returns false when conn was already torn down.
func (c *Controller) teardown(conn *connection) bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return false
	}
	c.conn = nil
	c.mu.Unlock()

	conn.cancel()
	conn.scheduler.Stop()
	if err := conn.transport.Close(); err != nil {
		c.errors.Handle(err, "transport:close")
	}
	conn.wg.Wait()

	if partial := conn.framer.Pending(); partial != "" {
		c.logger.Debug("Discarding %d byte(s) of unterminated record", len(partial))
	}
	c.logger.Debug("Sampler fired %d tick(s), dropped %d overlapping", conn.scheduler.Fired(), conn.scheduler.Dropped())
	return true
}

// Connected reports whether a transport is open.
func (c *Controller) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// -----------------------------------------------------------------------------
// Read loop
// -----------------------------------------------------------------------------

func (c *Controller) readLoop(ctx context.Context, conn *connection) {
	defer conn.wg.Done()

	for {
		chunk, err := conn.transport.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, transport.ErrClosed) {
				return
			}
			if helpers.IsHardTransportError(err) {
				go c.deviceLost(conn, err)
				return
			}

			c.metrics.softReadErrors.Add(1)
			c.errors.Handle(err, "transport:read")
			select {
			case <-ctx.Done():
				return
			case <-time.After(softErrorBackoff):
			}
			continue
		}

		c.feed(conn, chunk.Data)

		if chunk.EndOfStream {
			go c.endOfStream(conn)
			return
		}
	}
}

// -----------------------------------------------------------------------------

// feed drains every complete record in data before returning.
func (c *Controller) feed(conn *connection, data string) {
	if data == "" {
		return
	}
	c.metrics.bytesRead.Add(int64(len(data)))

	records, err := conn.framer.Feed(data)
	if err != nil {
		c.metrics.bufferOverflows.Add(1)
		c.logger.Warning("%v: no %q terminator seen, pending input discarded", err, conn.profile.Parser.LineTerminator)
	}

	for _, record := range records {
		c.metrics.recordsFramed.Add(1)
		c.mu.Lock()
		c.recent.Append(record)
		c.mu.Unlock()

		m := conn.parser.Parse(record)
		if m == nil {
			c.metrics.recordsRejected.Add(1)
			continue
		}
		c.metrics.recordsParsed.Add(1)
		c.session.Publish(m)
	}
}

// -----------------------------------------------------------------------------

func (c *Controller) onTick(now time.Time) {
	if _, ok := c.session.Sample(now); !ok {
		return
	}
	c.metrics.samplesCollected.Add(1)
	c.persister.Request("sample")
	c.publish(TypeUpdate, "")
}

// -----------------------------------------------------------------------------

// deviceLost ends the session after a hard transport failure and writes an
// emergency export.
func (c *Controller) deviceLost(conn *connection, cause error) {
	c.errors.Handle(cause, "transport:read")
	if !c.teardown(conn) {
		return
	}

	c.persister.Flush("serialDisconnect")

	message := "Connection to the instrument was lost. Data was saved."
	if !c.session.IsEmpty() {
		paths, err := c.ExportNow(export.PrefixDisconnect)
		if err != nil {
			c.errors.Handle(err, "export:disconnect")
			message = "Connection to the instrument was lost. Session saved, export failed."
		} else {
			c.logger.Info("Emergency export wrote %d file(s)", len(paths))
		}
	}
	c.publish(TypeAlert, message)
}

// endOfStream closes the session when the transport reports no more data.
func (c *Controller) endOfStream(conn *connection) {
	if !c.teardown(conn) {
		return
	}
	c.logger.Info("Transport reached end of stream")
	c.persister.Request("endOfStream")
	c.publish(TypeUpdate, "")
}

// -----------------------------------------------------------------------------
// Push
// -----------------------------------------------------------------------------

func (c *Controller) publish(kind, message string) {
	if c.exchange == nil {
		return
	}
	state := c.State(kind, message)
	c.exchange.UpdateAllDatas(state)
	c.exchange.Broadcast(state)
}

// -----------------------------------------------------------------------------

// State builds the payload pushed to listeners. The real-time series is
// limited to the chart window.
func (c *Controller) State(kind, message string) *models.MLatestData {
	p, _ := c.registry.Selected()
	latest, _ := c.session.Latest()
	titration, derivative := c.session.TitrationSeries()

	maxPoints := c.cfg.Sampling.MaxPoints
	if maxPoints <= 0 {
		maxPoints = utils.DefaultMaxPoints
	}

	state := &models.MLatestData{
		Type:              kind,
		Profile:           p.Name,
		Connected:         c.Connected(),
		SelectedField:     c.session.SelectedField(),
		Fields:            c.session.Fields(),
		Latest:            latest,
		RealTime:          c.session.RealTimeTail(maxPoints),
		Titration:         titration,
		Derivative:        derivative,
		Message:           message,
		Timestamp:         c.now().UnixMilli(),
		ProcessingMetrics: c.metrics.snapshot(),
	}

	c.mu.RLock()
	if c.conn != nil {
		state.Port = c.conn.transport.Describe()
		state.IntervalMs = c.conn.period.Milliseconds()
	}
	c.mu.RUnlock()
	return state
}

// Metrics returns the pipeline counters.
func (c *Controller) Metrics() models.MProcessingMetrics {
	m := c.metrics.snapshot()
	m.SnapshotsSaved = int64(c.persister.Saves())
	m.RealTimeRows, m.TitrationRows, m.DerivativePoints = c.session.Counts()
	return m
}

// RecentRecords returns the newest raw records, oldest first.
func (c *Controller) RecentRecords() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recent.GetAll()
}
