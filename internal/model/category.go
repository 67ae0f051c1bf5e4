package model

// DefaultCategoryIcon is shown for categories created without an icon.
const DefaultCategoryIcon = "tag"

// Category groups tasks under a colored tag.
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon,omitempty"`
}

func (c Category) IconOrDefault() string {
	if c.Icon == "" {
		return DefaultCategoryIcon
	}
	return c.Icon
}

// CategoryInput holds the fields accepted when a category is created.
type CategoryInput struct {
	Name  string `validate:"notblank,max=100"`
	Color string `validate:"required,max=32"`
	Icon  string `validate:"max=64"`
}

// CategoryPatch is a partial category update. ClearIcon resets the icon to the default.
type CategoryPatch struct {
	Name      *string `validate:"omitempty,notblank,max=100"`
	Color     *string `validate:"omitempty,notblank,max=32"`
	Icon      *string `validate:"omitempty,max=64"`
	ClearIcon bool
}

func (p CategoryPatch) IsEmpty() bool {
	return p.Name == nil && p.Color == nil && p.Icon == nil && !p.ClearIcon
}

func (p CategoryPatch) Apply(c *Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.Icon != nil {
		c.Icon = *p.Icon
	}
	if p.ClearIcon {
		c.Icon = ""
	}
}
