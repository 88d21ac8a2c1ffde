// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

// Package command implements the multi-mode binary's subcommands
// (dispatcher, vertex, supervisor, executor, client) and the shared
// config-file discovery/decoding they use (spec §6).
package command

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/qihexiang/jobs-dispatcher/dispatcher"
	"github.com/qihexiang/jobs-dispatcher/queue"
	"github.com/qihexiang/jobs-dispatcher/resources"
	"github.com/qihexiang/jobs-dispatcher/vertex"
	"github.com/qihexiang/jobs-dispatcher/vertexclient"
)

// discoverConfigPath implements spec §6's lookup order: the named
// environment variable first, then ./NAME.yml, /etc/NAME.yml,
// /usr/local/etc/NAME.yml. It returns the first path that exists.
func discoverConfigPath(envVar, name string) (string, error) {
	if p := os.Getenv(envVar); p != "" {
		return p, nil
	}
	candidates := []string{
		filepath.Join(".", name+".yml"),
		filepath.Join("/etc", name+".yml"),
		filepath.Join("/usr/local/etc", name+".yml"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("command: no %s config found (set %s or place %s.yml in ., /etc, or /usr/local/etc)", name, envVar, name)
}

// decodeYAML parses data as YAML into a generic map, then decodes that
// map into out via mapstructure, with a hook converting integer
// microsecond counts to time.Duration — the shape spec §6's
// max_timeout/loop_interval/vertex_lost fields are expressed in.
func decodeYAML(data []byte, out any) error {
	var generic map[string]any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("command: parse yaml: %w", err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			microsToDurationHook,
			providerHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("command: build decoder: %w", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return fmt.Errorf("command: decode config: %w", err)
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// microsToDurationHook converts a bare numeric YAML value targeting a
// time.Duration field into microseconds — the unit spec §6 specifies
// for max_timeout/loop_interval/vertex_lost.
func microsToDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case int:
		return time.Duration(v) * time.Microsecond, nil
	case int64:
		return time.Duration(v) * time.Microsecond, nil
	case float64:
		return time.Duration(v) * time.Microsecond, nil
	default:
		return data, nil
	}
}

var providerType = reflect.TypeOf(resources.Provider{})

// providerHook builds a resources.Provider from a plain YAML mapping
// of {cpus: [...], mems: [...], countables: {...}, properties: {...}},
// since Provider's node sets are a third-party Set type mapstructure
// cannot construct on its own.
func providerHook(from, to reflect.Type, data any) (any, error) {
	if to != providerType {
		return data, nil
	}
	m, ok := data.(map[string]any)
	if !ok {
		return data, nil
	}
	cpus, err := toIntSlice(m["cpus"])
	if err != nil {
		return nil, fmt.Errorf("command: provider.cpus: %w", err)
	}
	mems, err := toIntSlice(m["mems"])
	if err != nil {
		return nil, fmt.Errorf("command: provider.mems: %w", err)
	}
	countables := resources.Countables{}
	if raw, ok := m["countables"].(map[string]any); ok {
		for k, v := range raw {
			n, err := toUint64(v)
			if err != nil {
				return nil, fmt.Errorf("command: provider.countables[%s]: %w", k, err)
			}
			countables[k] = n
		}
	}
	properties := resources.Properties{}
	if raw, ok := m["properties"].(map[string]any); ok {
		for k, v := range raw {
			properties[k] = fmt.Sprintf("%v", v)
		}
	}
	return resources.NewProvider(cpus, mems, countables, properties), nil
}

func toIntSlice(v any) ([]int, error) {
	raw, ok := v.([]any)
	if !ok {
		return nil, nil
	}
	out := make([]int, 0, len(raw))
	for _, e := range raw {
		switch n := e.(type) {
		case int:
			out = append(out, n)
		case float64:
			out = append(out, int(n))
		default:
			return nil, fmt.Errorf("expected integer, got %T", e)
		}
	}
	return out, nil
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case int:
		return uint64(n), nil
	case int64:
		return uint64(n), nil
	case float64:
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// --- YAML-facing wire shapes, converted to the module's internal types ---

type idControlWire struct {
	Allow []uint32 `mapstructure:"allow"`
	Deny  []uint32 `mapstructure:"deny"`
}

func (w idControlWire) toIDControl() queue.IDControl {
	if len(w.Deny) > 0 {
		return queue.Deny(w.Deny...)
	}
	return queue.Allow(w.Allow...)
}

type amountLimitWire struct {
	MaxRunning int `mapstructure:"max_running"`
	MaxQueue   int `mapstructure:"max_queue"`
}

func (w *amountLimitWire) toAmountLimit() *queue.AmountLimit {
	if w == nil {
		return nil
	}
	return &queue.AmountLimit{MaxRunning: w.MaxRunning, MaxQueue: w.MaxQueue}
}

type priorityRuleWire struct {
	Kind         string  `mapstructure:"kind"`
	Key          string  `mapstructure:"key"`
	Value        string  `mapstructure:"value"`
	Offset       float64 `mapstructure:"offset"`
	Ratio        float64 `mapstructure:"ratio"`
	SelectFactor float64 `mapstructure:"select_factor"`
	UseFactor    float64 `mapstructure:"use_factor"`
	AutoOffset   float64 `mapstructure:"auto_offset"`
	Factor       float64 `mapstructure:"factor"`
}

func (w priorityRuleWire) toPriorityRule() (queue.PriorityRule, error) {
	switch w.Kind {
	case "property":
		return queue.PropertyRule(w.Key, w.Value, w.Offset), nil
	case "countable":
		return queue.CountableRule(w.Key, w.Offset, w.Ratio), nil
	case "cpuset":
		return queue.CpusetRule(w.SelectFactor, w.UseFactor, w.AutoOffset), nil
	case "waiting":
		return queue.WaitingRule(w.Factor), nil
	default:
		return queue.PriorityRule{}, fmt.Errorf("command: unknown priority rule kind %q", w.Kind)
	}
}

type queueConfigWire struct {
	Users        idControlWire      `mapstructure:"users"`
	Groups       idControlWire      `mapstructure:"groups"`
	Properties   resources.Properties `mapstructure:"properties"`
	GlobalLimit  *amountLimitWire   `mapstructure:"global_limit"`
	UserLimit    *amountLimitWire   `mapstructure:"user_limit"`
	GroupLimit   *amountLimitWire   `mapstructure:"group_limit"`
	PriorityRule []priorityRuleWire `mapstructure:"priority_rules"`
}

func (w queueConfigWire) toConfiguration() (queue.Configuration, error) {
	rules := make([]queue.PriorityRule, 0, len(w.PriorityRule))
	for _, rw := range w.PriorityRule {
		r, err := rw.toPriorityRule()
		if err != nil {
			return queue.Configuration{}, err
		}
		rules = append(rules, r)
	}
	return queue.Configuration{
		PriorityRule: rules,
		Users:        w.Users.toIDControl(),
		Groups:       w.Groups.toIDControl(),
		Properties:   w.Properties,
		GlobalLimit:  w.GlobalLimit.toAmountLimit(),
		UserLimit:    w.UserLimit.toAmountLimit(),
		GroupLimit:   w.GroupLimit.toAmountLimit(),
	}, nil
}

type dispatcherConfigWire struct {
	Listen       string                           `mapstructure:"listen"`
	Vertexes     map[string]vertexclient.Config   `mapstructure:"vertexes"`
	MaxTimeout   time.Duration                    `mapstructure:"max_timeout"`
	LoopInterval time.Duration                    `mapstructure:"loop_interval"`
	VertexLost   time.Duration                    `mapstructure:"vertex_lost"`
	Queues       map[string]queueConfigWire       `mapstructure:"queues"`
	Persistent   string                           `mapstructure:"persistent"`
}

// LoadDispatcherConfig discovers and decodes the dispatcher's YAML
// config (spec §6).
func LoadDispatcherConfig(explicitPath string) (dispatcher.Config, error) {
	path := explicitPath
	var err error
	if path == "" {
		path, err = discoverConfigPath("DISPATCHER_CONFIG_PATH", "dispatcher")
		if err != nil {
			return dispatcher.Config{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return dispatcher.Config{}, fmt.Errorf("command: read dispatcher config %s: %w", path, err)
	}
	var w dispatcherConfigWire
	if err := decodeYAML(data, &w); err != nil {
		return dispatcher.Config{}, err
	}
	queues := make(map[string]queue.Configuration, len(w.Queues))
	for name, qw := range w.Queues {
		cfg, err := qw.toConfiguration()
		if err != nil {
			return dispatcher.Config{}, fmt.Errorf("command: queue %q: %w", name, err)
		}
		queues[name] = cfg
	}
	return dispatcher.Config{
		Listen:       w.Listen,
		Vertexes:     w.Vertexes,
		MaxTimeout:   w.MaxTimeout,
		LoopInterval: w.LoopInterval,
		VertexLost:   w.VertexLost,
		Queues:       queues,
		Persistent:   w.Persistent,
	}, nil
}

type vertexConfigWire struct {
	HTTP struct {
		IP   string `mapstructure:"ip"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"http"`
	Basic     map[string]string  `mapstructure:"basic"`
	Resources resources.Provider `mapstructure:"resources"`
	History   string             `mapstructure:"history"`
}

// LoadVertexConfig discovers and decodes a vertex's YAML config
// (spec §6).
func LoadVertexConfig(explicitPath string) (vertex.Config, error) {
	path := explicitPath
	var err error
	if path == "" {
		path, err = discoverConfigPath("VERTEX_CONFIG_PATH", "vertex")
		if err != nil {
			return vertex.Config{}, err
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return vertex.Config{}, fmt.Errorf("command: read vertex config %s: %w", path, err)
	}
	var w vertexConfigWire
	if err := decodeYAML(data, &w); err != nil {
		return vertex.Config{}, err
	}
	return vertex.Config{
		HTTP:      vertex.HTTPConfig{IP: w.HTTP.IP, Port: w.HTTP.Port},
		Basic:     w.Basic,
		Resources: w.Resources,
		History:   w.History,
	}, nil
}
