/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog is the scheduling view of product master data: half-life,
// process durations and the batch activity ceiling.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownProduct = errors.New("unknown product")
	ErrInvalidProduct = errors.New("invalid product definition")
)

// Product carries the physical and process constants of one product.
type Product struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	HalfLife              time.Duration   `json:"half_life"`
	ProductionDuration    time.Duration   `json:"production_duration"`
	Buffer                time.Duration   `json:"buffer"` // transport and QC
	DoseProcessingMinutes int             `json:"dose_processing_minutes"`
	MaxBatchActivity      decimal.Decimal `json:"max_batch_activity"`
	ActivityUnit          string          `json:"activity_unit"`
}

// DecayConstant returns lambda = ln 2 / half-life, per minute.
func (p Product) DecayConstant() float64 {
	return math.Ln2 / p.HalfLife.Minutes()
}

// DecayFactor is the fraction of activity left after elapsed.
func (p Product) DecayFactor(elapsed time.Duration) float64 {
	return math.Exp(-p.DecayConstant() * elapsed.Minutes())
}

// GrowthFactor is the inverse of DecayFactor: how much activity must exist
// elapsed earlier to leave one unit. It is +Inf once the exponent overflows.
func (p Product) GrowthFactor(elapsed time.Duration) float64 {
	return math.Exp(p.DecayConstant() * elapsed.Minutes())
}

// EstimatedMinutes is the processing time for doses.
func (p Product) EstimatedMinutes(doses int) int {
	return p.DoseProcessingMinutes * doses
}

// ProductionMinutes is the whole-minute production duration.
func (p Product) ProductionMinutes() int {
	return int(math.Ceil(p.ProductionDuration.Minutes()))
}

// Validate checks the constants are usable.
func (p Product) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	case p.HalfLife <= 0:
		return fmt.Errorf("%w: %s: half-life must be positive", ErrInvalidProduct, p.ID)
	case p.ProductionDuration <= 0:
		return fmt.Errorf("%w: %s: production duration must be positive", ErrInvalidProduct, p.ID)
	case p.Buffer < 0:
		return fmt.Errorf("%w: %s: buffer must not be negative", ErrInvalidProduct, p.ID)
	case p.DoseProcessingMinutes <= 0:
		return fmt.Errorf("%w: %s: dose processing minutes must be positive", ErrInvalidProduct, p.ID)
	case !p.MaxBatchActivity.IsPositive():
		return fmt.Errorf("%w: %s: max batch activity must be positive", ErrInvalidProduct, p.ID)
	}
	if _, ok := mbqPerUnit[normalizeUnit(p.ActivityUnit)]; !ok {
		return fmt.Errorf("%w: %s: unknown activity unit %q", ErrInvalidProduct, p.ID, p.ActivityUnit)
	}
	return nil
}

// Catalog resolves products by id.
type Catalog interface {
	Product(ctx context.Context, id string) (Product, error)
	Products(ctx context.Context) ([]Product, error)
}

// Static is an in-memory catalog.
type Static struct {
	products map[string]Product
}

// NewStatic validates products and indexes them by id.
func NewStatic(products ...Product) (*Static, error) {
	s := &Static{products: make(map[string]Product, len(products))}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.products[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %s", ErrInvalidProduct, p.ID)
		}
		p.ActivityUnit = normalizeUnit(p.ActivityUnit)
		s.products[p.ID] = p
	}
	return s, nil
}

// Product returns the product with id.
func (s *Static) Product(_ context.Context, id string) (Product, error) {
	p, ok := s.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return p, nil
}

// Products returns all products sorted by id.
func (s *Static) Products(_ context.Context) ([]Product, error) {
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fileProduct struct {
	ID                    string  `yaml:"id"`
	Name                  string  `yaml:"name"`
	HalfLifeMinutes       float64 `yaml:"half_life_minutes"`
	ProductionMinutes     int     `yaml:"production_minutes"`
	BufferMinutes         *int    `yaml:"buffer_minutes"`
	DoseProcessingMinutes int     `yaml:"dose_processing_minutes"`
	MaxBatchActivity      string  `yaml:"max_batch_activity"`
	ActivityUnit          string  `yaml:"activity_unit"`
}

type fileCatalog struct {
	Products []fileProduct `yaml:"products"`
}

// Parse reads a YAML catalog. Products without buffer_minutes get
// defaultBuffer.
func Parse(data []byte, defaultBuffer time.Duration) (*Static, error) {
	var fc fileCatalog
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse product catalog: %w", err)
	}

	products := make([]Product, 0, len(fc.Products))
	for _, fp := range fc.Products {
		ceiling, err := decimal.NewFromString(strings.TrimSpace(fp.MaxBatchActivity))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: max_batch_activity %q", ErrInvalidProduct, fp.ID, fp.MaxBatchActivity)
		}
		buffer := defaultBuffer
		if fp.BufferMinutes != nil {
			buffer = time.Duration(*fp.BufferMinutes) * time.Minute
		}
		products = append(products, Product{
			ID:                    fp.ID,
			Name:                  fp.Name,
			HalfLife:              time.Duration(fp.HalfLifeMinutes * float64(time.Minute)),
			ProductionDuration:    time.Duration(fp.ProductionMinutes) * time.Minute,
			Buffer:                buffer,
			DoseProcessingMinutes: fp.DoseProcessingMinutes,
			MaxBatchActivity:      ceiling,
			ActivityUnit:          fp.ActivityUnit,
		})
	}
	return NewStatic(products...)
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string, defaultBuffer time.Duration) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read product catalog: %w", err)
	}
	return Parse(data, defaultBuffer)
}
