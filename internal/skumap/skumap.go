// Package skumap loads the file-backed mapping from marketplace SKUs to
// partner SKUs and print assets consulted at submission time.
package skumap

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Asset is one print file bound to a mapped SKU.
type Asset struct {
	PrintArea string `mapstructure:"print_area"`
	URL       string `mapstructure:"url"`
}

// Entry maps one marketplace SKU onto the partner's catalog.
type Entry struct {
	PartnerSKU string            `mapstructure:"partner_sku"`
	Sizing     string            `mapstructure:"sizing"`
	Attributes map[string]string `mapstructure:"attributes"`
	Assets     []Asset           `mapstructure:"assets"`
}

// Mapper resolves marketplace SKUs. A miss is not an error: unmapped SKUs
// simply yield no partner line item.
type Mapper interface {
	Lookup(sku string) (Entry, bool)
}

type fileMapper struct {
	v   *viper.Viper
	log *zap.Logger

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewFileMapper reads the SKU map from path. When watch is set the file is
// re-read on change, so the operator can extend the catalog without
// restarting the resident process.
func NewFileMapper(path string, watch bool, log *zap.Logger) (Mapper, error) {
	v := viper.New()
	v.SetConfigFile(path)

	m := &fileMapper{v: v, log: log.Named("skumap")}
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := m.reload(); err != nil {
		return nil, err
	}

	if watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := m.reload(); err != nil {
				m.log.Warn("reload sku map", zap.String("file", e.Name), zap.Error(err))
				return
			}
			m.log.Info("sku map reloaded", zap.String("file", e.Name))
		})
		v.WatchConfig()
	}
	return m, nil
}

func (m *fileMapper) reload() error {
	var entries map[string]Entry
	if err := m.v.UnmarshalKey("skus", &entries); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()
	return nil
}

func (m *fileMapper) Lookup(sku string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[sku]
	return entry, ok
}

// StaticMapper serves a fixed entry set. Used in tests.
type StaticMapper map[string]Entry

func (m StaticMapper) Lookup(sku string) (Entry, bool) {
	entry, ok := m[sku]
	return entry, ok
}
