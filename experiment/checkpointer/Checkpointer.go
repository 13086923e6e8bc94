// Package checkpointer implements Checkpointers, which save the
// learned weights of agents during an experiment
package checkpointer

// Saveable is an object that can be saved to a file
type Saveable interface {
	Save(filename string) error
}

// Checkpointer checkpoints Saveable objects based on the total number
// of steps taken in an experiment
type Checkpointer interface {
	Checkpoint(steps int) error
}
