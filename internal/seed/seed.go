// Package seed carga fixtures YAML (animales, actividades y solicitudes) a través de los servicios,
// así que pasan por las mismas validaciones e historial que la API.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"animal-shelter/internal/domain/activities"
	"animal-shelter/internal/domain/adoptions"
	"animal-shelter/internal/domain/animals"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type Animal struct {
	// Key permite referenciar el animal desde requests.
	Key          string `yaml:"key,omitempty"`
	Name         string `yaml:"name" validate:"required"`
	Species      string `yaml:"species" validate:"required,oneof=dog cat rabbit other"`
	Breed        string `yaml:"breed,omitempty"`
	Sex          string `yaml:"sex,omitempty" validate:"omitempty,oneof=male female unknown"`
	Color        string `yaml:"color,omitempty"`
	Size         string `yaml:"size,omitempty" validate:"omitempty,oneof=small medium large"`
	Microchip    string `yaml:"microchip,omitempty"`
	Notes        string `yaml:"notes,omitempty"`
	LocationID   string `yaml:"location" validate:"required"`
	InitialState string `yaml:"state,omitempty" validate:"omitempty,oneof=under_evaluation available under_treatment"`
}

type Activity struct {
	Title              string    `yaml:"title" validate:"required"`
	Description        string    `yaml:"description,omitempty"`
	Location           string    `yaml:"location,omitempty"`
	StartsAt           time.Time `yaml:"startsAt" validate:"required"`
	Duration           string    `yaml:"duration" validate:"required"` // ej: 2h, 90m
	RequiredVolunteers int       `yaml:"requiredVolunteers" validate:"min=1"`
	Urgent             bool      `yaml:"urgent,omitempty"`
	// Opcional: RRULE para generar una serie.
	RRule string `yaml:"rrule,omitempty"`
}

type Request struct {
	Animal     string `yaml:"animal" validate:"required"` // Key del animal
	Applicant  string `yaml:"applicant" validate:"required"`
	Motivation string `yaml:"motivation,omitempty"`
}

type File struct {
	ActorID    string     `yaml:"actor" validate:"required"`
	Animals    []Animal   `yaml:"animals" validate:"dive"`
	Activities []Activity `yaml:"activities" validate:"dive"`
	Requests   []Request  `yaml:"requests" validate:"dive"`
}

// Targets son los servicios donde se aplica el seed.
type Targets struct {
	Animals    *animals.Service
	Activities *activities.Service
	Adoptions  *adoptions.Service
}

type Result struct {
	Animals    int
	Activities int
	Requests   int
}

var validate = validator.New()

func Parse(r io.Reader) (File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decode seed: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return File{}, fmt.Errorf("seed validation failed: %w", err)
	}
	keys := map[string]bool{}
	for _, a := range f.Animals {
		if a.Key == "" {
			continue
		}
		if keys[a.Key] {
			return File{}, fmt.Errorf("duplicate animal key %q", a.Key)
		}
		keys[a.Key] = true
	}
	for _, r := range f.Requests {
		if !keys[r.Animal] {
			return File{}, fmt.Errorf("request for %s references unknown animal %q", r.Applicant, r.Animal)
		}
	}
	for i, a := range f.Activities {
		if d, err := time.ParseDuration(a.Duration); err != nil || d <= 0 {
			return File{}, fmt.Errorf("activity %d (%s): invalid duration %q", i, a.Title, a.Duration)
		}
	}
	return f, nil
}

func Load(path string) (File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return File{}, err
	}
	defer fh.Close()
	return Parse(fh)
}

// Apply da de alta todo lo del archivo. Se detiene en el primer error.
func Apply(ctx context.Context, t Targets, f File, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var res Result
	ids := map[string]string{}

	for _, a := range f.Animals {
		created, err := t.Animals.Intake(ctx, f.ActorID, animals.IntakeInput{
			Name:         a.Name,
			Species:      animals.Species(a.Species),
			Breed:        a.Breed,
			Sex:          animals.Sex(a.Sex),
			Color:        a.Color,
			Size:         animals.Size(a.Size),
			Microchip:    a.Microchip,
			Notes:        a.Notes,
			LocationID:   a.LocationID,
			InitialState: animals.State(a.InitialState),
		})
		if err != nil {
			return res, fmt.Errorf("animal %s: %w", a.Name, err)
		}
		if a.Key != "" {
			ids[a.Key] = created.ID
		}
		log.Debug("seeded animal", zap.String("animal_id", created.ID), zap.String("name", created.Name))
		res.Animals++
	}

	for _, a := range f.Activities {
		d, _ := time.ParseDuration(a.Duration)
		spec := activities.Spec{
			Title:              a.Title,
			Description:        a.Description,
			Location:           a.Location,
			StartsAt:           a.StartsAt,
			EndsAt:             a.StartsAt.Add(d),
			RequiredVolunteers: a.RequiredVolunteers,
			IsUrgent:           a.Urgent,
		}
		if a.RRule != "" {
			items, err := t.Activities.CreateSeries(ctx, f.ActorID, spec, a.RRule)
			if err != nil {
				return res, fmt.Errorf("activity series %s: %w", a.Title, err)
			}
			res.Activities += len(items)
			continue
		}
		if _, err := t.Activities.CreateActivity(ctx, f.ActorID, spec); err != nil {
			return res, fmt.Errorf("activity %s: %w", a.Title, err)
		}
		res.Activities++
	}

	for _, r := range f.Requests {
		if _, err := t.Adoptions.Submit(ctx, r.Applicant, adoptions.SubmitInput{
			AnimalID:   ids[r.Animal],
			Motivation: r.Motivation,
		}); err != nil {
			return res, fmt.Errorf("request %s/%s: %w", r.Animal, r.Applicant, err)
		}
		res.Requests++
	}

	log.Info("seed applied",
		zap.Int("animals", res.Animals),
		zap.Int("activities", res.Activities),
		zap.Int("requests", res.Requests))
	return res, nil
}
