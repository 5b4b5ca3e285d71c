// Package http provides a transport that exchanges Hessian payloads over
// HTTP/HTTPS POST requests.
package http

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	nethttp "net/http"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/achilleasa/hessian2/config"
	"github.com/achilleasa/hessian2/config/flag"
	"github.com/achilleasa/hessian2/transport"
)

const (
	// ContentType is the media type of Hessian request and response bodies.
	ContentType = "application/binary"

	requestIDHeader = "Hessian-Request-Id"

	// TLS verification options
	tlsVerifySkip   = "skip"
	tlsVerifySystem = "system"
)

// A set of endpoints that can be hooked by tests
var (
	listen          = net.Listen
	tlsListen       = tls.Listen
	newRequest      = nethttp.NewRequest
	readAll         = io.ReadAll
	readFile        = os.ReadFile
	loadX509KeyPair = tls.LoadX509KeyPair
	systemCertPool  = x509.SystemCertPool
	setFinalizer    = runtime.SetFinalizer
)

var (
	errMissingCertificate   = errors.New("missing tls certificate/key configuration settings")
	errAddCertificateToPool = errors.New("could not add CA certificate to client certificate pool")
	errInvalidVerifyMode    = errors.New(`invalid tls verify option; supported values are "skip" and "system"`)
	errRelativeEndpoint     = errors.New("http transport requires an absolute endpoint URL")
)

// Headers that describe the HTTP exchange itself and are not relayed to
// messages.
var skipHeaders = map[string]bool{
	"Accept-Encoding":   true,
	"Connection":        true,
	"Content-Encoding":  true,
	"Content-Length":    true,
	"Date":              true,
	"Transfer-Encoding": true,
	requestIDHeader:     true,
}

var (
	_ transport.Provider = &Transport{}

	singletonMutex    sync.Mutex
	singletonInstance *Transport
)

type requestMaker interface {
	Do(req *nethttp.Request) (*nethttp.Response, error)
}

// Option configures a Transport.
type Option func(t *Transport)

// WithLogger sets the logger used by the transport.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithProxy routes client requests through the given proxy URL. It overrides
// the transport/http/client/proxy setting.
func WithProxy(proxyURL *url.URL) Option {
	return func(t *Transport) {
		t.proxyURL = proxyURL
	}
}

// Transport implements a transport over HTTP/HTTPS.
//
// In client mode every request is POSTed to the URL returned by the message
// Endpoint method. Message headers become HTTP headers and the response is
// mapped back using the following rules:
//   - 200 = reply payload
//   - 500 = fault payload (the response message carries transport.HeaderFault)
//     or, for non-Hessian bodies, an error holding the body text
//   - 401 = transport.ErrNotAuthorized
//   - 404 = transport.ErrNotFound
//   - 408 = transport.ErrTimeout
//   - 503 = transport.ErrServiceUnavailable
//
// In server mode the transport listens on the configured port and dispatches
// POST requests to the handler bound to the request path. Non-POST requests
// and unknown paths receive a 404. Handlers flag fault responses with
// transport.HeaderFault which yields a 500; handler errors are mapped back to
// the status codes listed above.
//
// The transport watches the following configuration keys:
//   - transport/http/protocol (default: http). Either "http" or "https".
//   - transport/http/port (default: ""). The listen port; defaults to the
//     protocol port when empty.
//   - transport/http/tls/certificate and transport/http/tls/key. The server
//     certificate and key; required when protocol is "https".
//   - transport/http/tls/strict (default: "true"). Restricts TLS versions and
//     cipher suites and emits an HSTS header.
//   - transport/http/client/verifycert (default: "system"). "system" verifies
//     server certificates against the system pool (extended with
//     transport/http/client/cacert if set); "skip" disables verification.
//   - transport/http/client/proxy (default: ""). A proxy URL for client
//     requests.
//   - transport/http/compression (default: ""). A content encoding for
//     request bodies; one of gzip, zstd, lz4 or s2. Servers always accept
//     these encodings and compress replies according to Accept-Encoding.
//
// Configuration changes trigger a graceful redial of the listener and a
// rebuild of the HTTP client.
type Transport struct {
	rwMutex        sync.RWMutex
	serverRefCount int
	clientRefCount int

	bindings map[string]transport.Handler

	// closed to stop the config watcher
	watcherDoneChan chan struct{}

	// closed by the server goroutine once it exits
	serverDoneChan chan struct{}

	config        *flag.MapFlag
	protocol      *flag.StringFlag
	port          *flag.Uint32Flag
	tlsCert       *flag.StringFlag
	tlsKey        *flag.StringFlag
	tlsStrictMode *flag.BoolFlag
	tlsVerify     *flag.StringFlag
	caCert        *flag.StringFlag
	proxy         *flag.StringFlag
	compression   *flag.StringFlag

	proxyURL *url.URL
	logger   zerolog.Logger

	listener net.Listener

	client    requestMaker
	clientErr error
}

// New creates a new http transport instance.
func New(opts ...Option) *Transport {
	t := &Transport{
		bindings:      make(map[string]transport.Handler),
		config:        config.MapFlag("transport/http"),
		protocol:      config.StringFlag("transport/http/protocol"),
		port:          config.Uint32Flag("transport/http/port"),
		tlsCert:       config.StringFlag("transport/http/tls/certificate"),
		tlsKey:        config.StringFlag("transport/http/tls/key"),
		tlsStrictMode: config.BoolFlag("transport/http/tls/strict"),
		tlsVerify:     config.StringFlag("transport/http/client/verifycert"),
		caCert:        config.StringFlag("transport/http/client/cacert"),
		proxy:         config.StringFlag("transport/http/client/proxy"),
		compression:   config.StringFlag("transport/http/compression"),
		logger:        log.Logger,

		watcherDoneChan: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(t)
	}

	// Discard the event for the initial configuration value
	select {
	case <-t.config.ChangeChan():
	default:
	}

	go t.configChangeMonitor(t.watcherDoneChan)
	setFinalizer(t, func(t *Transport) { close(t.watcherDoneChan) })

	return t
}

// Dial connects the transport in the given mode. Dialing in server mode
// starts the listener; dialing in client mode builds the HTTP client.
func (t *Transport) Dial(mode transport.Mode) error {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	switch mode {
	case transport.ModeServer:
		if t.serverRefCount > 0 {
			t.serverRefCount++
			return nil
		}
		err := t.dial()
		if err == nil {
			t.serverRefCount++
		}
		return err
	default:
		if t.clientRefCount > 0 {
			t.clientRefCount++
			return nil
		}
		err := t.createClient()
		if err == nil {
			t.clientRefCount++
		}
		return err
	}
}

// Close shuts down the transport in the given mode once every Dial call has
// been matched by a Close call.
func (t *Transport) Close(mode transport.Mode) error {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	switch mode {
	case transport.ModeServer:
		if t.serverRefCount == 0 {
			return transport.ErrTransportClosed
		}

		t.serverRefCount--
		if t.serverRefCount == 0 && t.listener != nil {
			t.listener.Close()
			<-t.serverDoneChan
			t.serverDoneChan = nil
			t.listener = nil
			t.logger.Info().Msg("http transport listener stopped")
		}
	default:
		if t.clientRefCount == 0 {
			return transport.ErrTransportClosed
		}
		t.clientRefCount--
	}

	return nil
}

// Bind registers handler for POST requests to path.
func (t *Transport) Bind(path string, handler transport.Handler) error {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	path = transport.EndpointPath(path)
	if _, exists := t.bindings[path]; exists {
		return fmt.Errorf("binding %q already defined", path)
	}
	t.bindings[path] = handler
	return nil
}

// Unbind removes the handler bound to path.
func (t *Transport) Unbind(path string) {
	t.rwMutex.Lock()
	defer t.rwMutex.Unlock()

	delete(t.bindings, transport.EndpointPath(path))
}

// Addr returns the address of the listener or nil if the transport is not
// dialed in server mode.
func (t *Transport) Addr() net.Addr {
	t.rwMutex.RLock()
	defer t.rwMutex.RUnlock()

	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Request POSTs the message payload to its endpoint URL.
func (t *Transport) Request(reqMsg transport.Message) <-chan transport.ImmutableMessage {
	resChan := make(chan transport.ImmutableMessage, 1)

	go func() {
		resMsg := transport.MakeGenericMessage()
		resMsg.EndpointField = reqMsg.Endpoint()
		resMsg.ErrField = t.roundTrip(reqMsg, resMsg)
		resChan <- resMsg
		close(resChan)
	}()

	return resChan
}

func (t *Transport) roundTrip(reqMsg transport.Message, resMsg *transport.GenericMessage) error {
	endpoint, err := url.Parse(reqMsg.Endpoint())
	if err != nil {
		return err
	}
	if !endpoint.IsAbs() {
		return errRelativeEndpoint
	}

	encoding := t.requestEncoding()
	payload, _ := reqMsg.Payload()
	body, err := compress(encoding, payload)
	if err != nil {
		return err
	}

	httpReq, err := newRequest(nethttp.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}

	httpReq.Header.Set(transport.HeaderContentType, ContentType)
	for name, value := range reqMsg.Headers() {
		httpReq.Header.Set(name, value)
	}
	if endpoint.User != nil && httpReq.Header.Get(transport.HeaderAuthorization) == "" {
		password, _ := endpoint.User.Password()
		httpReq.SetBasicAuth(endpoint.User.Username(), password)
	}
	httpReq.Header.Set(requestIDHeader, reqMsg.ID())
	httpReq.Header.Set("Accept-Encoding", strings.Join(supportedEncodings, ", "))
	if encoding != encodingIdentity {
		httpReq.Header.Set("Content-Encoding", encoding)
	}

	var httpRes *nethttp.Response
	t.rwMutex.RLock()
	switch {
	case t.clientRefCount == 0:
		err = transport.ErrTransportClosed
	case t.clientErr != nil:
		err = t.clientErr
	default:
		httpRes, err = t.client.Do(httpReq)
	}
	t.rwMutex.RUnlock()

	if err != nil {
		return err
	}
	defer httpRes.Body.Close()

	switch httpRes.StatusCode {
	case nethttp.StatusOK, nethttp.StatusInternalServerError:
	case nethttp.StatusUnauthorized:
		return transport.ErrNotAuthorized
	case nethttp.StatusNotFound:
		return transport.ErrNotFound
	case nethttp.StatusRequestTimeout:
		return transport.ErrTimeout
	case nethttp.StatusServiceUnavailable:
		return transport.ErrServiceUnavailable
	default:
		return fmt.Errorf("unexpected HTTP status %q", httpRes.Status)
	}

	data, err := readAll(httpRes.Body)
	if err != nil {
		return err
	}
	if data, err = decompress(httpRes.Header.Get("Content-Encoding"), data); err != nil {
		return err
	}

	copyHeaders(resMsg, httpRes.Header)

	if httpRes.StatusCode == nethttp.StatusInternalServerError {
		if len(data) == 0 || !strings.HasPrefix(httpRes.Header.Get(transport.HeaderContentType), ContentType) {
			msg := strings.TrimSpace(string(data))
			if msg == "" {
				msg = httpRes.Status
			}
			return errors.New(msg)
		}
		resMsg.HeadersField[transport.HeaderFault] = "true"
	}

	resMsg.PayloadField = data
	return nil
}

// requestEncoding returns the configured request content encoding or the
// identity encoding if the setting is missing or invalid.
func (t *Transport) requestEncoding() string {
	if !t.compression.HasValue() {
		return encodingIdentity
	}
	encoding := strings.ToLower(t.compression.Get())
	if !isSupportedEncoding(encoding) {
		return encodingIdentity
	}
	return encoding
}

func copyHeaders(msg *transport.GenericMessage, header nethttp.Header) {
	for name, values := range header {
		if skipHeaders[name] || len(values) == 0 || values[0] == "" {
			continue
		}
		msg.HeadersField[name] = values[0]
	}
}

// dial starts the HTTP listener. Must be invoked while holding the write lock.
func (t *Transport) dial() error {
	var err error
	var tlsConfig *tls.Config
	var listenPort string

	protocol := t.protocol.Get()
	switch protocol {
	case "http":
		listenPort = ":http"
	case "https":
		listenPort = ":https"
		if tlsConfig, err = t.buildTLSConfig(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported protocol %q", protocol)
	}

	if t.port.HasValue() {
		listenPort = fmt.Sprintf(":%d", t.port.Get())
	}

	// Shut down the previous listener when redialing
	if t.listener != nil {
		t.listener.Close()
		<-t.serverDoneChan
		t.listener = nil
	}

	if tlsConfig != nil {
		t.listener, err = tlsListen("tcp", listenPort, tlsConfig)
	} else {
		t.listener, err = listen("tcp", listenPort)
	}
	if err != nil {
		t.listener = nil
		return err
	}

	strictMode := tlsConfig != nil && t.tlsStrictMode.Get()
	srv := &nethttp.Server{
		Handler:           nethttp.HandlerFunc(t.mux(strictMode)),
		TLSConfig:         tlsConfig,
		TLSNextProto:      make(map[string]func(*nethttp.Server, *tls.Conn, nethttp.Handler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	t.serverDoneChan = make(chan struct{})
	go func(listener net.Listener, doneChan chan struct{}) {
		srv.Serve(listener)
		close(doneChan)
	}(t.listener, t.serverDoneChan)

	t.logger.Info().
		Str("protocol", protocol).
		Str("addr", t.listener.Addr().String()).
		Msg("http transport listening")
	return nil
}

// configChangeMonitor redials the listener and rebuilds the client whenever
// the transport configuration changes.
func (t *Transport) configChangeMonitor(doneChan chan struct{}) {
	for {
		select {
		case <-doneChan:
			return
		case <-t.config.ChangeChan():
		}

		t.syncFlags(t.config.Get())

		t.rwMutex.Lock()
		if t.serverRefCount > 0 {
			if err := t.dial(); err != nil {
				t.logger.Error().Err(err).Msg("http transport redial failed")
			}
		}
		if t.clientRefCount > 0 {
			t.clientErr = t.createClient()
		}
		t.rwMutex.Unlock()
	}
}

// syncFlags applies the values of a configuration change event to the
// individual setting flags so a redial never observes stale values.
func (t *Transport) syncFlags(cfg map[string]string) {
	stringFlags := map[string]*flag.StringFlag{
		"protocol":          t.protocol,
		"compression":       t.compression,
		"tls/certificate":   t.tlsCert,
		"tls/key":           t.tlsKey,
		"client/verifycert": t.tlsVerify,
		"client/cacert":     t.caCert,
		"client/proxy":      t.proxy,
	}
	for key, f := range stringFlags {
		if val, exists := cfg[key]; exists {
			f.Set(val)
		}
	}

	if port, err := strconv.ParseUint(cfg["port"], 10, 32); err == nil {
		t.port.Set(uint32(port))
	}
	if strict, err := strconv.ParseBool(cfg["tls/strict"]); err == nil {
		t.tlsStrictMode.Set(strict)
	}
}

// mux returns the request handler used by the listener.
func (t *Transport) mux(strictMode bool) func(nethttp.ResponseWriter, *nethttp.Request) {
	return func(rw nethttp.ResponseWriter, httpReq *nethttp.Request) {
		defer httpReq.Body.Close()
		start := time.Now()
		status := t.serve(rw, httpReq, strictMode)

		event := t.logger.Debug()
		if status >= 500 {
			event = t.logger.Warn()
		}
		event.
			Str("method", httpReq.Method).
			Str("path", httpReq.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	}
}

func (t *Transport) serve(rw nethttp.ResponseWriter, httpReq *nethttp.Request, strictMode bool) int {
	if strictMode {
		rw.Header().Add("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
	}

	if httpReq.Method != nethttp.MethodPost {
		rw.WriteHeader(nethttp.StatusNotFound)
		return nethttp.StatusNotFound
	}

	t.rwMutex.RLock()
	handler, exists := t.bindings[httpReq.URL.Path]
	t.rwMutex.RUnlock()

	if !exists {
		rw.WriteHeader(nethttp.StatusNotFound)
		return nethttp.StatusNotFound
	}

	payload, err := readAll(httpReq.Body)
	if err == nil {
		payload, err = decompress(httpReq.Header.Get("Content-Encoding"), payload)
	}
	if err != nil {
		nethttp.Error(rw, err.Error(), nethttp.StatusBadRequest)
		return nethttp.StatusBadRequest
	}

	reqMsg := transport.MakeGenericMessage()
	defer reqMsg.Close()
	reqMsg.EndpointField = httpReq.URL.Path
	reqMsg.PayloadField = payload
	if id := httpReq.Header.Get(requestIDHeader); id != "" {
		reqMsg.IDField = id
	}
	copyHeaders(reqMsg, httpReq.Header)

	resMsg := transport.MakeGenericMessage()
	defer resMsg.Close()
	resMsg.EndpointField = reqMsg.EndpointField

	handler.Process(reqMsg, resMsg)

	switch resMsg.ErrField {
	case nil:
	case transport.ErrNotFound:
		rw.WriteHeader(nethttp.StatusNotFound)
		return nethttp.StatusNotFound
	case transport.ErrTimeout:
		rw.WriteHeader(nethttp.StatusRequestTimeout)
		return nethttp.StatusRequestTimeout
	case transport.ErrNotAuthorized:
		rw.Header().Set("Www-Authenticate", `Basic realm="hessian2"`)
		rw.WriteHeader(nethttp.StatusUnauthorized)
		return nethttp.StatusUnauthorized
	case transport.ErrServiceUnavailable:
		rw.WriteHeader(nethttp.StatusServiceUnavailable)
		return nethttp.StatusServiceUnavailable
	default:
		nethttp.Error(rw, resMsg.ErrField.Error(), nethttp.StatusInternalServerError)
		return nethttp.StatusInternalServerError
	}

	status := nethttp.StatusOK
	for name, value := range resMsg.HeadersField {
		if name == transport.HeaderFault {
			if value == "true" {
				status = nethttp.StatusInternalServerError
			}
			continue
		}
		rw.Header().Set(name, value)
	}
	rw.Header().Set(transport.HeaderContentType, ContentType)
	rw.Header().Set(requestIDHeader, reqMsg.IDField)

	body := resMsg.PayloadField
	if encoding := negotiateEncoding(httpReq.Header.Get("Accept-Encoding")); encoding != encodingIdentity && len(body) != 0 {
		if compressed, err := compress(encoding, body); err == nil {
			rw.Header().Set("Content-Encoding", encoding)
			body = compressed
		}
	}

	rw.WriteHeader(status)
	rw.Write(body)
	return status
}

// createClient builds the HTTP client. Must be called while holding the
// write lock.
func (t *Transport) createClient() error {
	httpTransport := &nethttp.Transport{
		Proxy:               nethttp.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
	}

	proxyURL := t.proxyURL
	if proxyURL == nil && t.proxy.HasValue() && t.proxy.Get() != "" {
		var err error
		if proxyURL, err = url.Parse(t.proxy.Get()); err != nil {
			t.client, t.clientErr = nil, err
			return err
		}
	}
	if proxyURL != nil {
		httpTransport.Proxy = nethttp.ProxyURL(proxyURL)
	}

	if t.protocol.Get() == "https" || t.tlsVerify.Get() == tlsVerifySkip {
		tlsConfig, err := t.buildClientTLSConfig()
		if err != nil {
			t.client, t.clientErr = nil, err
			return err
		}
		httpTransport.TLSClientConfig = tlsConfig
	}

	t.client = &nethttp.Client{Transport: httpTransport}
	t.clientErr = nil
	return nil
}

func (t *Transport) buildClientTLSConfig() (*tls.Config, error) {
	switch t.tlsVerify.Get() {
	case tlsVerifySkip:
		return &tls.Config{InsecureSkipVerify: true}, nil
	case tlsVerifySystem:
		certPool, err := systemCertPool()
		if err != nil {
			return nil, err
		}

		if caFile := t.caCert.Get(); caFile != "" {
			certData, err := readFile(caFile)
			if err != nil {
				return nil, err
			}
			if !certPool.AppendCertsFromPEM(certData) {
				return nil, errAddCertificateToPool
			}
		}
		return &tls.Config{RootCAs: certPool, MinVersion: tls.VersionTLS12}, nil
	default:
		return nil, errInvalidVerifyMode
	}
}

// buildTLSConfig validates the server TLS settings and generates a TLS
// configuration for the listener.
func (t *Transport) buildTLSConfig() (*tls.Config, error) {
	tlsCert := t.tlsCert.Get()
	tlsKey := t.tlsKey.Get()
	if tlsCert == "" || tlsKey == "" {
		return nil, errMissingCertificate
	}

	cert, err := loadX509KeyPair(tlsCert, tlsKey)
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{Certificates: []tls.Certificate{cert}}
	if t.tlsStrictMode.Get() {
		tlsConfig.MinVersion = tls.VersionTLS12
		tlsConfig.CurvePreferences = []tls.CurveID{tls.CurveP521, tls.CurveP384, tls.CurveP256}
		tlsConfig.CipherSuites = []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		}
	}

	return tlsConfig, nil
}

// Factory returns a new HTTP transport.
func Factory() transport.Provider {
	return New()
}

// SingletonFactory returns a process-wide HTTP transport instance.
func SingletonFactory() transport.Provider {
	singletonMutex.Lock()
	defer singletonMutex.Unlock()

	if singletonInstance == nil {
		singletonInstance = New()
	}
	return singletonInstance
}

func init() {
	config.SetDefaults("transport/http", map[string]string{
		"protocol":          "http",
		"port":              "",
		"compression":       "",
		"tls/certificate":   "",
		"tls/key":           "",
		"tls/strict":        "true",
		"client/verifycert": tlsVerifySystem,
		"client/cacert":     "",
		"client/proxy":      "",
	})
}
