package memory

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"labfunds/internal/core"
	"labfunds/internal/period"
)

// Seed is the YAML layout accepted by LoadSeed. Amounts and dates are
// strings so that no precision is lost on the way in. Account amounts are
// hand-typed and may use a decimal comma; they are rounded to cents.
type Seed struct {
	Projects []SeedProject `yaml:"projects"`
	Accounts []SeedEntry   `yaml:"accounts"`
}

type SeedProject struct {
	ID            string            `yaml:"id"`
	Name          string            `yaml:"name"`
	Type          string            `yaml:"type"`
	StartDate     string            `yaml:"start_date"`
	EndDate       string            `yaml:"end_date"`
	Installments  []SeedInstallment `yaml:"installments"`
	Heads         []SeedHead        `yaml:"heads"`
	NegativeHeads []string          `yaml:"negative_heads"`
}

type SeedInstallment struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

type SeedHead struct {
	Name        string   `yaml:"name"`
	Allocations []string `yaml:"allocations"`
}

type SeedEntry struct {
	Type     string `yaml:"type"`
	Amount   string `yaml:"amount"`
	Credited bool   `yaml:"credited"`
	Remarks  string `yaml:"remarks"`
}

// ParseSeed decodes a YAML seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// SeedTarget is the write side a seed needs. Both backends satisfy it.
type SeedTarget interface {
	CreateProject(ctx context.Context, p *core.Project) error
	AppendAccountEntry(ctx context.Context, e *core.AccountEntry) error
}

// LoadSeedFile reads path and applies it to s.
func (s *Store) LoadSeedFile(ctx context.Context, path string) error {
	return LoadSeedFile(ctx, s, path)
}

// LoadSeedFile reads path and applies it to dst.
func LoadSeedFile(ctx context.Context, dst SeedTarget, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return err
	}
	return Apply(ctx, dst, seed)
}

func (s *Store) Apply(ctx context.Context, seed *Seed) error {
	return Apply(ctx, s, seed)
}

// Apply inserts the seed's projects and account entries. Projects are
// validated like any other write.
func Apply(ctx context.Context, s SeedTarget, seed *Seed) error {
	for i, sp := range seed.Projects {
		p, err := sp.project()
		if err != nil {
			return fmt.Errorf("seed project %d: %w", i, err)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("seed project %q: %w", p.Name, err)
		}
		if err := p.ValidateSeries(period.Count(p)); err != nil {
			return fmt.Errorf("seed project %q: %w", p.Name, err)
		}
		if err := s.CreateProject(ctx, p); err != nil {
			return fmt.Errorf("seed project %q: %w", p.Name, err)
		}
	}
	for i, se := range seed.Accounts {
		amount, err := core.ParseAmount(se.Amount)
		if err != nil {
			return fmt.Errorf("seed account entry %d: %w", i, err)
		}
		e := &core.AccountEntry{
			Type:         core.AccountType(se.Type),
			Amount:       amount,
			Credited:     se.Credited,
			Transferable: decimal.Zero,
			Remarks:      se.Remarks,
		}
		if err := e.Validate(); err != nil {
			return fmt.Errorf("seed account entry %d: %w", i, err)
		}
		if err := s.AppendAccountEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (sp SeedProject) project() (*core.Project, error) {
	p := &core.Project{
		Name:          sp.Name,
		Type:          core.ProjectType(sp.Type),
		NegativeHeads: sp.NegativeHeads,
	}
	if sp.ID != "" {
		id, err := uuid.Parse(sp.ID)
		if err != nil {
			return nil, fmt.Errorf("parse id: %w", err)
		}
		p.ID = id
	}
	var err error
	if sp.StartDate != "" {
		if p.StartDate, err = core.ParseDate(sp.StartDate); err != nil {
			return nil, err
		}
	}
	if sp.EndDate != "" {
		if p.EndDate, err = core.ParseDate(sp.EndDate); err != nil {
			return nil, err
		}
	}
	for _, in := range sp.Installments {
		start, err := core.ParseDate(in.StartDate)
		if err != nil {
			return nil, err
		}
		end, err := core.ParseDate(in.EndDate)
		if err != nil {
			return nil, err
		}
		p.Installments = append(p.Installments, core.Installment{StartDate: start, EndDate: end})
	}
	for _, h := range sp.Heads {
		series := make([]decimal.Decimal, len(h.Allocations))
		for i, a := range h.Allocations {
			v, err := decimal.NewFromString(a)
			if err != nil {
				return nil, fmt.Errorf("head %q allocation %d: %w", h.Name, i, core.ErrInvalidAmount)
			}
			series[i] = v
		}
		p.Heads.Set(h.Name, series)
	}
	return p, nil
}
