package course

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Bundle is a lesson with its exercises as authored in a YAML file:
//
//	subject: C programming
//	lesson: Pointers
//	notions: [pointers, arrays]
//	exercises:
//	  - title: Dereference
//	    kind: multiple-choice
//	    time_limit_min: 5
//	    prompt: What does `*p` evaluate to?
//	    options:
//	      - text: the value p points to
//	        correct: true
//	      - text: the address of p
type Bundle struct {
	Subject   string           `yaml:"subject"`
	Lesson    string           `yaml:"lesson"`
	Notions   []string         `yaml:"notions"`
	Exercises []BundleExercise `yaml:"exercises"`
}

type BundleExercise struct {
	Title        string         `yaml:"title"`
	Kind         string         `yaml:"kind"`
	Prompt       string         `yaml:"prompt"`
	TimeLimitMin int            `yaml:"time_limit_min"`
	Options      []BundleOption `yaml:"options"`
}

type BundleOption struct {
	Text    string `yaml:"text"`
	Correct bool   `yaml:"correct"`
}

func LoadBundle(r io.Reader) (Bundle, error) {
	var b Bundle
	buf, err := io.ReadAll(r)
	if err != nil {
		return Bundle{}, errors.Wrap(err, "read bundle")
	}
	if err := yaml.UnmarshalStrict(buf, &b); err != nil {
		return Bundle{}, errors.Wrap(err, "parse bundle")
	}
	if err := validateName("subject", b.Subject); err != nil {
		return Bundle{}, err
	}
	if err := validateName("lesson", b.Lesson); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

// ImportResult lists what ImportBundle created.
type ImportResult struct {
	SubjectID   string
	LessonID    string
	NotionIDs   []string
	ExerciseIDs []string
}

// ImportBundle writes b through the store. The subject is reused when one with
// the same name already exists; notions are created under it.
func ImportBundle(ctx context.Context, st Store, b Bundle, authorID string) (ImportResult, error) {
	var res ImportResult

	subjects, err := st.ListSubjects(ctx)
	if err != nil {
		return res, errors.Wrap(err, "list subjects")
	}
	for _, s := range subjects {
		if s.Name == b.Subject {
			res.SubjectID = s.ID
			break
		}
	}
	if res.SubjectID == "" {
		if res.SubjectID, err = st.CreateSubject(ctx, b.Subject); err != nil {
			return res, errors.Wrap(err, "create subject")
		}
	}

	for _, n := range b.Notions {
		id, err := st.CreateNotion(ctx, res.SubjectID, n)
		if err != nil {
			return res, errors.Wrapf(err, "create notion %q", n)
		}
		res.NotionIDs = append(res.NotionIDs, id)
	}

	res.LessonID, err = st.CreateLesson(ctx, Lesson{
		SubjectID: res.SubjectID,
		Title:     b.Lesson,
		CreatedBy: authorID,
		Notions:   res.NotionIDs,
	})
	if err != nil {
		return res, errors.Wrap(err, "create lesson")
	}

	for i, be := range b.Exercises {
		kind, err := ParseKind(be.Kind)
		if err != nil {
			return res, errors.Wrapf(err, "exercise %d", i+1)
		}
		e := Exercise{LessonID: res.LessonID, Kind: kind, Title: be.Title, Prompt: be.Prompt}
		if be.TimeLimitMin > 0 {
			e.TimeLimitMinutes = Minutes(be.TimeLimitMin)
		}
		opts := make([]Option, 0, len(be.Options))
		for _, o := range be.Options {
			opts = append(opts, Option{Text: o.Text, Correct: o.Correct})
		}
		id, err := st.CreateExercise(ctx, e, opts)
		if err != nil {
			return res, errors.Wrapf(err, "exercise %q", be.Title)
		}
		res.ExerciseIDs = append(res.ExerciseIDs, id)
	}
	return res, nil
}
