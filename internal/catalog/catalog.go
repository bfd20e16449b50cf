package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reservio/internal/models"
)

// ProfessionalConfig is one professional entry in catalog.yaml.
type ProfessionalConfig struct {
	ID            string                 `yaml:"id"`
	Name          string                 `yaml:"name"`
	Skills        []string               `yaml:"skills"`
	HomeRoom      string                 `yaml:"home_room"`
	MaxConcurrent int                    `yaml:"max_concurrent"`
	Hours         map[string]HoursConfig `yaml:"hours"`
}

// HoursConfig is a working-hours interval, "HH:MM" strings.
type HoursConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// ResourceConfig is one room or equipment entry.
type ResourceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`
	Room string `yaml:"room,omitempty"`
}

// ServiceConfig is one service definition.
type ServiceConfig struct {
	ID              string   `yaml:"id"`
	Name            string   `yaml:"name"`
	DurationMinutes int      `yaml:"duration_minutes"`
	Resources       []string `yaml:"resources"`
}

// FileConfig is the root of catalog.yaml.
type FileConfig struct {
	Professionals []ProfessionalConfig `yaml:"professionals"`
	Resources     []ResourceConfig     `yaml:"resources"`
	Services      []ServiceConfig      `yaml:"services"`
}

var weekdayNames = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// Catalog is the read-only directory of professionals, resources and
// services. It is built once at startup and shared by reference.
type Catalog struct {
	professionals map[string]*models.Professional
	resources     map[string]*models.Resource
	services      map[string]*models.Service
	// bySkill lists professional ids per service id, in file order so
	// search results are deterministic.
	bySkill map[string][]string
	order   []string
}

// Load reads, validates and indexes the catalog file.
func Load(path string) (*Catalog, error) {
	if path == "" {
		path = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	return Build(&cfg)
}

// Build validates a parsed config and constructs the catalog.
func Build(cfg *FileConfig) (*Catalog, error) {
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	c := &Catalog{
		professionals: make(map[string]*models.Professional, len(cfg.Professionals)),
		resources:     make(map[string]*models.Resource, len(cfg.Resources)),
		services:      make(map[string]*models.Service, len(cfg.Services)),
		bySkill:       make(map[string][]string),
	}

	for _, rc := range cfg.Resources {
		c.resources[rc.ID] = &models.Resource{
			ID:     rc.ID,
			Name:   rc.Name,
			Kind:   models.ResourceKind(rc.Kind),
			RoomID: rc.Room,
		}
	}

	for _, sc := range cfg.Services {
		c.services[sc.ID] = &models.Service{
			ID:              sc.ID,
			Name:            sc.Name,
			DurationMinutes: sc.DurationMinutes,
			ResourceIDs:     append([]string(nil), sc.Resources...),
		}
	}

	for _, pc := range cfg.Professionals {
		hours := make(map[time.Weekday]models.WorkingHours, len(pc.Hours))
		for day, h := range pc.Hours {
			hours[weekdayNames[strings.ToLower(day)]] = models.WorkingHours{Start: h.Start, End: h.End}
		}
		maxConcurrent := pc.MaxConcurrent
		if maxConcurrent == 0 {
			maxConcurrent = 1
		}
		c.professionals[pc.ID] = &models.Professional{
			ID:            pc.ID,
			Name:          pc.Name,
			Skills:        append([]string(nil), pc.Skills...),
			HomeRoomID:    pc.HomeRoom,
			Hours:         hours,
			MaxConcurrent: maxConcurrent,
		}
		c.order = append(c.order, pc.ID)
		for _, skill := range pc.Skills {
			c.bySkill[skill] = append(c.bySkill[skill], pc.ID)
		}
	}

	return c, nil
}

func validate(cfg *FileConfig) error {
	if len(cfg.Professionals) == 0 {
		return fmt.Errorf("no professionals defined")
	}
	if len(cfg.Services) == 0 {
		return fmt.Errorf("no services defined")
	}

	resourceIDs := make(map[string]bool)
	for i, r := range cfg.Resources {
		if r.ID == "" {
			return fmt.Errorf("resource[%d]: id is required", i)
		}
		if strings.Contains(r.ID, "|") {
			return fmt.Errorf("resource[%d]: id must not contain '|'", i)
		}
		if resourceIDs[r.ID] {
			return fmt.Errorf("resource[%d]: duplicate id %q", i, r.ID)
		}
		resourceIDs[r.ID] = true

		switch models.ResourceKind(r.Kind) {
		case models.ResourceRoom:
			if r.Room != "" {
				return fmt.Errorf("resource[%d]: room %q cannot belong to another room", i, r.ID)
			}
		case models.ResourceEquipment:
			// room affinity optional
		default:
			return fmt.Errorf("resource[%d]: unknown kind %q", i, r.Kind)
		}
	}
	for i, r := range cfg.Resources {
		if r.Room != "" && !resourceIDs[r.Room] {
			return fmt.Errorf("resource[%d]: unknown room %q", i, r.Room)
		}
	}

	serviceIDs := make(map[string]bool)
	for i, s := range cfg.Services {
		if s.ID == "" {
			return fmt.Errorf("service[%d]: id is required", i)
		}
		if strings.Contains(s.ID, "|") {
			return fmt.Errorf("service[%d]: id must not contain '|'", i)
		}
		if serviceIDs[s.ID] {
			return fmt.Errorf("service[%d]: duplicate id %q", i, s.ID)
		}
		serviceIDs[s.ID] = true

		if s.DurationMinutes <= 0 {
			return fmt.Errorf("service[%d]: duration_minutes must be positive", i)
		}
		for _, rid := range s.Resources {
			if !resourceIDs[rid] {
				return fmt.Errorf("service[%d]: unknown resource %q", i, rid)
			}
		}
	}

	professionalIDs := make(map[string]bool)
	for i, p := range cfg.Professionals {
		if p.ID == "" {
			return fmt.Errorf("professional[%d]: id is required", i)
		}
		if strings.Contains(p.ID, "|") {
			return fmt.Errorf("professional[%d]: id must not contain '|'", i)
		}
		if professionalIDs[p.ID] {
			return fmt.Errorf("professional[%d]: duplicate id %q", i, p.ID)
		}
		professionalIDs[p.ID] = true

		if p.HomeRoom != "" && !resourceIDs[p.HomeRoom] {
			return fmt.Errorf("professional[%d]: unknown home_room %q", i, p.HomeRoom)
		}
		for _, skill := range p.Skills {
			if !serviceIDs[skill] {
				return fmt.Errorf("professional[%d]: unknown skill %q", i, skill)
			}
		}
		for day, h := range p.Hours {
			if _, ok := weekdayNames[strings.ToLower(day)]; !ok {
				return fmt.Errorf("professional[%d]: invalid weekday %q", i, day)
			}
			if err := validateHours(h, fmt.Sprintf("professional[%d].hours.%s", i, day)); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateHours(h HoursConfig, prefix string) error {
	start, err := time.Parse("15:04", h.Start)
	if err != nil {
		return fmt.Errorf("%s.start: invalid format %q, expected HH:MM", prefix, h.Start)
	}
	end, err := time.Parse("15:04", h.End)
	if err != nil {
		return fmt.Errorf("%s.end: invalid format %q, expected HH:MM", prefix, h.End)
	}
	if !end.After(start) {
		return fmt.Errorf("%s: end must be after start", prefix)
	}
	return nil
}

// ProfessionalByID returns the professional or nil.
func (c *Catalog) ProfessionalByID(id string) *models.Professional {
	return c.professionals[id]
}

// ProfessionalsBySkill returns professionals able to perform the service,
// in catalog order.
func (c *Catalog) ProfessionalsBySkill(serviceID string) []*models.Professional {
	ids := c.bySkill[serviceID]
	result := make([]*models.Professional, 0, len(ids))
	for _, id := range ids {
		result = append(result, c.professionals[id])
	}
	return result
}

// ResourceByID returns the resource or nil.
func (c *Catalog) ResourceByID(id string) *models.Resource {
	return c.resources[id]
}

// ServiceByID returns the service or nil.
func (c *Catalog) ServiceByID(id string) *models.Service {
	return c.services[id]
}

// Services returns all services keyed by id.
func (c *Catalog) Services() map[string]*models.Service {
	out := make(map[string]*models.Service, len(c.services))
	for id, s := range c.services {
		out[id] = s
	}
	return out
}

// EquipmentIDs filters the given resource ids down to equipment.
func (c *Catalog) EquipmentIDs(resourceIDs []string) []string {
	var out []string
	for _, id := range resourceIDs {
		if r := c.resources[id]; r != nil && r.Kind == models.ResourceEquipment {
			out = append(out, id)
		}
	}
	return out
}

// String returns a summary of the catalog.
func (c *Catalog) String() string {
	return fmt.Sprintf("Catalog: %d professionals, %d resources, %d services",
		len(c.professionals), len(c.resources), len(c.services))
}
