// Package config reads the course adaptive-configuration seed file.
//
//	courses:
//	  - course_id: 5b0c...
//	    bkt: {learning_rate: 0.3, guessing_probability: 0.2, slipping_probability: 0.1}
//	    policy: {epsilon: 0.1, min_difficulty: easy, max_difficulty: hard, avoid_repeat_minutes: 30}
//	    knowledge_components:
//	      - kc_id: 0d3e...
//	        bkt: {learning_rate: 0.25, guessing_probability: 0.25, slipping_probability: 0.1}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/bkt"
	"github.com/yungbote/medquiz-backend/internal/modules/adaptive/selection"
)

var ErrInvalidFile = errors.New("adaptive config: invalid seed file")

type File struct {
	Courses []Course `yaml:"courses" validate:"dive"`
}

type Course struct {
	CourseID            uuid.UUID         `yaml:"course_id"`
	BKT                 *ParamSet         `yaml:"bkt" validate:"required"`
	Policy              *selection.Config `yaml:"policy"`
	KnowledgeComponents []KC              `yaml:"knowledge_components" validate:"dive"`
}

type KC struct {
	KCID uuid.UUID `yaml:"kc_id"`
	BKT  *ParamSet `yaml:"bkt" validate:"required"`
}

// ParamSet uses pointers so a key left out of the file is distinguishable from an explicit 0.
type ParamSet struct {
	LearningRate        *float64 `json:"learning_rate" yaml:"learning_rate" validate:"required,gte=0,lte=1"`
	GuessingProbability *float64 `json:"guessing_probability" yaml:"guessing_probability" validate:"required,gte=0,lte=1"`
	SlippingProbability *float64 `json:"slipping_probability" yaml:"slipping_probability" validate:"required,gte=0,lte=1"`
}

// Validate fails unless all three parameters are present and inside [0,1].
func (p *ParamSet) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: missing bkt parameters", ErrInvalidFile)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	return nil
}

func (p ParamSet) Params() bkt.Params {
	var out bkt.Params
	if p.LearningRate != nil {
		out.LearningRate = *p.LearningRate
	}
	if p.GuessingProbability != nil {
		out.GuessingProbability = *p.GuessingProbability
	}
	if p.SlippingProbability != nil {
		out.SlippingProbability = *p.SlippingProbability
	}
	return out
}

// PolicyOrDefault returns the course policy, falling back to selection.DefaultConfig.
func (c Course) PolicyOrDefault() selection.Config {
	if c.Policy == nil {
		return selection.DefaultConfig()
	}
	return *c.Policy
}

var validate = validator.New()

func LoadFile(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read adaptive config %s: %w", path, err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate rejects any course without complete BKT defaults or with an invalid policy.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFile, err)
	}
	seen := map[uuid.UUID]bool{}
	for i, c := range f.Courses {
		if c.CourseID == uuid.Nil {
			return fmt.Errorf("%w: courses[%d]: missing course_id", ErrInvalidFile, i)
		}
		if seen[c.CourseID] {
			return fmt.Errorf("%w: course %s listed twice", ErrInvalidFile, c.CourseID)
		}
		seen[c.CourseID] = true
		if err := c.PolicyOrDefault().Validate(); err != nil {
			return fmt.Errorf("%w: course %s: %v", ErrInvalidFile, c.CourseID, err)
		}
		for j, kc := range c.KnowledgeComponents {
			if kc.KCID == uuid.Nil {
				return fmt.Errorf("%w: course %s: knowledge_components[%d]: missing kc_id", ErrInvalidFile, c.CourseID, j)
			}
		}
	}
	return nil
}
