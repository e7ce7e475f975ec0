// Package catalog holds the read-only master data of the roastery: materials
// and the recipes that turn them into products.
//
// Catalogs are authored as CUE files:
//
//	material: "green-eth": {
//		name:      "Ethiopia Guji"
//		category:  "RAW"
//		loss_rate: 0.15
//	}
//
//	recipe: "house": {
//		output: "roasted-house"
//		components: [
//			{material: "green-eth", ratio: 0.6},
//			{material: "green-bra", ratio: 0.4, loss_rate: 0.12},
//		]
//	}
//
// Files are unified with an embedded schema before they are read, so shape
// errors carry CUE file positions. Cross references (recipe outputs and
// components) must name materials defined in the same catalog.
package catalog

import (
	"fmt"
	"sort"

	"github.com/roach88/roastery/internal/domain"
)

// Catalog is an immutable set of materials and recipes. Safe for concurrent use.
type Catalog struct {
	materials map[string]domain.Material
	recipes   map[string]domain.Recipe
}

// New builds a catalog, checking that every recipe references known materials.
func New(materials []domain.Material, recipes []domain.Recipe) (*Catalog, error) {
	c := &Catalog{
		materials: make(map[string]domain.Material, len(materials)),
		recipes:   make(map[string]domain.Recipe, len(recipes)),
	}
	for _, m := range materials {
		if m.ID == "" {
			return nil, fmt.Errorf("material with empty id")
		}
		if _, dup := c.materials[m.ID]; dup {
			return nil, fmt.Errorf("material %q defined twice", m.ID)
		}
		if !m.Category.Valid() {
			return nil, fmt.Errorf("material %q: unknown category %q", m.ID, m.Category)
		}
		c.materials[m.ID] = m
	}
	for _, r := range recipes {
		if r.ID == "" {
			return nil, fmt.Errorf("recipe with empty id")
		}
		if _, dup := c.recipes[r.ID]; dup {
			return nil, fmt.Errorf("recipe %q defined twice", r.ID)
		}
		if err := c.checkRefs(r); err != nil {
			return nil, err
		}
		r.Components = append([]domain.Component(nil), r.Components...)
		c.recipes[r.ID] = r
	}
	return c, nil
}

func (c *Catalog) checkRefs(r domain.Recipe) error {
	if _, ok := c.materials[r.OutputMaterialID]; !ok {
		return fmt.Errorf("recipe %q: unknown output material %q", r.ID, r.OutputMaterialID)
	}
	for _, comp := range r.Components {
		if _, ok := c.materials[comp.MaterialID]; !ok {
			return fmt.Errorf("recipe %q: unknown component material %q", r.ID, comp.MaterialID)
		}
	}
	return nil
}

// GetRecipe returns a copy of the recipe, or RECIPE_NOT_FOUND.
func (c *Catalog) GetRecipe(id string) (domain.Recipe, error) {
	r, ok := c.recipes[id]
	if !ok {
		return domain.Recipe{}, domain.NewRecipeNotFound(id)
	}
	r.Components = append([]domain.Component(nil), r.Components...)
	return r, nil
}

// GetMaterial returns the material, or MATERIAL_NOT_FOUND.
func (c *Catalog) GetMaterial(id string) (domain.Material, error) {
	m, ok := c.materials[id]
	if !ok {
		return domain.Material{}, domain.NewMaterialNotFound(id)
	}
	return m, nil
}

// Materials returns all materials sorted by id.
func (c *Catalog) Materials() []domain.Material {
	out := make([]domain.Material, 0, len(c.materials))
	for _, m := range c.materials {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// MaterialMap returns the materials keyed by id, as the planner consumes them.
func (c *Catalog) MaterialMap() map[string]domain.Material {
	out := make(map[string]domain.Material, len(c.materials))
	for id, m := range c.materials {
		out[id] = m
	}
	return out
}

// Recipes returns all recipes sorted by id.
func (c *Catalog) Recipes() []domain.Recipe {
	out := make([]domain.Recipe, 0, len(c.recipes))
	for _, r := range c.recipes {
		r.Components = append([]domain.Component(nil), r.Components...)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
