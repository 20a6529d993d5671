package stage

import (
	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/naming"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/story"
)

// Story extracts the scenarios of a story, stores them under name and
// renders them as a feature file.
func (g *Generators) Story(tx *registry.Tx, name, text string) (Output, error) {
	st, err := story.Parse(name, text)
	if err != nil {
		return Output{}, err
	}
	c, err := tx.Resolve(name, registry.KindStory)
	if err != nil {
		return Output{}, err
	}

	if err := tx.PutStory(c.LogicalName, registry.StoryRecord{
		Title:     st.Title,
		Persona:   st.Persona,
		Scenarios: st.Scenarios,
	}); err != nil {
		return Output{}, err
	}
	methods := make(map[string]registry.Signature, len(st.Scenarios))
	for _, sc := range st.Scenarios {
		methods[naming.Snake(sc.Name)] = registry.Signature{}
	}
	if err := tx.ReplaceMethods(c.LogicalName, methods); err != nil {
		return Output{}, err
	}

	a, err := artifact.New(c.Identity.FilePath, []byte(story.Feature(st, c.Identity.FileStem)))
	if err != nil {
		return Output{}, err
	}
	return Output{Artifact: a, Component: c.LogicalName}, nil
}
