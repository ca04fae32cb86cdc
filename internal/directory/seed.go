package directory

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is a YAML-loadable snapshot of directory data for development
// and tests.
type Seed struct {
	Tenants       []Tenant       `yaml:"tenants"`
	Accounts      []Account      `yaml:"accounts"`
	Organizations []Organization `yaml:"organizations"`
	Domains       []Domain       `yaml:"domains"`
	Products      []Product      `yaml:"products"`
	Roles         []Role         `yaml:"roles"`

	// Permissions, when present, are used to precompute role
	// permission refs whose Coded field is empty.
	Permissions []Permission `yaml:"permissions"`
}

// LoadSeed reads a seed file from disk.
func LoadSeed(path string) (*Seed, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return ReadSeed(f)
}

// ReadSeed parses seed YAML from a reader.
func ReadSeed(r io.Reader) (*Seed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// Apply loads the seed into a memory store. Role permission refs with
// an empty Coded field are completed from the seed's permission list.
func (s *Seed) Apply(store *MemoryStore) error {
	coded := make(map[string]string, len(s.Permissions))
	for i := range s.Permissions {
		p := &s.Permissions[i]
		coded[p.ID] = p.Coded()
	}

	for i := range s.Tenants {
		store.PutTenant(&s.Tenants[i])
	}
	for i := range s.Organizations {
		store.PutOrganization(&s.Organizations[i])
	}
	for i := range s.Domains {
		store.PutDomain(&s.Domains[i])
	}
	for i := range s.Products {
		store.PutProduct(&s.Products[i])
	}
	for i := range s.Roles {
		role := s.Roles[i]
		for j := range role.Permissions {
			ref := &role.Permissions[j]
			if ref.Coded == "" {
				c, ok := coded[ref.ID]
				if !ok {
					return fmt.Errorf("role %s references unknown permission %s", role.ID, ref.ID)
				}
				ref.Coded = c
			}
		}
		store.PutRole(&role)
	}
	for i := range s.Accounts {
		store.PutAccount(&s.Accounts[i])
	}
	return nil
}
