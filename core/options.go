package core

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type runtimeBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	authProvider    AuthProvider
	transport       TransportAdapter
}

type Option func(*runtimeBuilder)

func WithLogger(logger Logger) Option {
	return func(b *runtimeBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *runtimeBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *runtimeBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *runtimeBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *runtimeBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *runtimeBuilder) {
		b.optionsResolver = resolver
	}
}

// WithAuthProvider sets the registration/token collaborator. Passing nil
// keeps the client in anonymous mode.
func WithAuthProvider(provider AuthProvider) Option {
	return func(b *runtimeBuilder) {
		b.authProvider = provider
	}
}

func WithTransport(adapter TransportAdapter) Option {
	return func(b *runtimeBuilder) {
		b.transport = adapter
	}
}

// Runtime is the resolved set of collaborators shared by the client and the
// legal loader.
type Runtime struct {
	Config         Config
	Logger         Logger
	LoggerProvider LoggerProvider
	Observer       *Observer
	ErrorMapper    ErrorMapper
	AuthProvider   AuthProvider
	Transport      TransportAdapter
}

func NewRuntime(name string, cfg Config, options ...Option) (Runtime, error) {
	builder := runtimeBuilder{
		runtimeConfig:   cfg,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultServiceName
	}
	provider, logger := glog.Resolve(name, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return Runtime{}, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return Runtime{}, mapBuildError(builder.errorMapper, err)
	}

	return Runtime{
		Config:         finalConfig,
		Logger:         logger,
		LoggerProvider: provider,
		Observer:       NewObserver(name, logger, builder.metricsRecorder),
		ErrorMapper:    builder.errorMapper,
		AuthProvider:   presentAuthProvider(builder.authProvider),
		Transport:      builder.transport,
	}, nil
}

// presentAuthProvider returns nil for a nil interface or a typed nil, so the
// client treats both as anonymous mode.
func presentAuthProvider(provider AuthProvider) AuthProvider {
	if provider == nil {
		return nil
	}
	value := reflect.ValueOf(provider)
	switch value.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		if value.IsNil() {
			return nil
		}
	}
	return provider
}

// MapError applies the runtime error mapper.
func (r Runtime) MapError(err error) error {
	if err == nil {
		return nil
	}
	if r.ErrorMapper == nil {
		return err
	}
	mapped := r.ErrorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader returns a loader serving a fixed raw map.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// configToLayerMap drops zero values unless includeZero is set, so a layer
// only overrides what it actually configures.
func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = strings.TrimSpace(value)
		}
	}

	setString(layer, "service_name", cfg.ServiceName)
	setString(layer, "base_server_url", cfg.BaseServerURL)
	if includeZero || cfg.RequestTimeout > 0 {
		layer["request_timeout"] = cfg.RequestTimeout
	}
	if includeZero || cfg.MaxResponseBodyBytes > 0 {
		layer["max_response_body_bytes"] = cfg.MaxResponseBodyBytes
	}

	i18n := map[string]any{}
	setString(i18n, "config_url", cfg.I18n.ConfigURL)
	setString(i18n, "documents_url", cfg.I18n.DocumentsURL)
	setString(i18n, "default_lang", cfg.I18n.DefaultLang)
	if len(i18n) > 0 {
		layer["i18n"] = i18n
	}

	registration := map[string]any{}
	setString(registration, "push_url", cfg.Registration.PushURL)
	if len(registration) > 0 {
		layer["registration"] = registration
	}
	return layer
}
