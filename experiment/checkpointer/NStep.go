package checkpointer

import "github.com/pkg/errors"

// nStep implements checkpointing every N steps
type nStep struct {
	interval int
	object   Saveable

	// filename returns the filename of the file to save the object in.
	//
	// If each checkpoint should be saved in a separate file with an
	// incremented number as a suffix (e.g. file1.bin, ..., fileK.bin),
	// use FilenameEnumerator. Otherwise, FileTimer suffixes each
	// filename with the current time:
	//
	//	n := NewNStep(10, object, FileTimer("filename", ".bin"))
	filename func() string
}

// NewNStep returns a checkpointer that checkpoints every n steps
func NewNStep(n int, object Saveable, filename func() string) (
	Checkpointer, error) {
	if n < 1 {
		return nil, errors.Errorf("newNStep: interval must be positive "+
			"\n\twant(>0)\n\thave(%v)", n)
	}

	return &nStep{
		interval: n,
		object:   object,
		filename: filename,
	}, nil
}

// Checkpoint saves the Checkpointer's object when steps is a multiple
// of the checkpointing interval
func (n *nStep) Checkpoint(steps int) error {
	if steps%n.interval != 0 {
		return nil
	}

	filename := n.filename()
	if err := n.object.Save(filename); err != nil {
		return errors.Wrapf(err, "checkpoint: step %v", steps)
	}
	return nil
}
