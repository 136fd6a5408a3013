package config

import "fmt"

// Curriculum is the static topic layout of the lesson catalog. Lessons
// are numbered 1..N and every topic covers a contiguous id range.
type Curriculum struct {
	Topics []TopicRange `yaml:"topics"`
}

// TopicRange maps a topic name to its inclusive lesson id range
type TopicRange struct {
	Topic string `yaml:"topic"`
	From  int    `yaml:"from"`
	To    int    `yaml:"to"`
}

// Lessons returns the number of lessons in the range
func (r TopicRange) Lessons() int {
	return r.To - r.From + 1
}

// Contains reports whether the lesson id falls in the range
func (r TopicRange) Contains(lessonID int) bool {
	return lessonID >= r.From && lessonID <= r.To
}

// DefaultCurriculum returns the built-in 120-lesson catalog layout
func DefaultCurriculum() Curriculum {
	return Curriculum{
		Topics: []TopicRange{
			{Topic: "Basic Pointers", From: 1, To: 20},
			{Topic: "Smart Pointers", From: 21, To: 40},
			{Topic: "Memory Management", From: 41, To: 60},
			{Topic: "Advanced Techniques", From: 61, To: 80},
			{Topic: "Undefined Behavior", From: 81, To: 100},
			{Topic: "Atomics & Threading", From: 101, To: 120},
		},
	}
}

// TotalLessons returns the curriculum size summed across topics
func (c Curriculum) TotalLessons() int {
	total := 0
	for _, t := range c.Topics {
		total += t.Lessons()
	}
	return total
}

// TopicFor returns the topic name covering the lesson id
func (c Curriculum) TopicFor(lessonID int) (string, bool) {
	for _, t := range c.Topics {
		if t.Contains(lessonID) {
			return t.Topic, true
		}
	}
	return "", false
}

// Validate checks topic ranges for shape and overlap
func (c Curriculum) Validate() error {
	prevTo := 0
	for i, t := range c.Topics {
		if t.Topic == "" {
			return fmt.Errorf("curriculum topic %d has no name", i)
		}
		if t.From < 1 || t.To < t.From {
			return fmt.Errorf("curriculum topic %q has invalid range %d-%d", t.Topic, t.From, t.To)
		}
		if t.From <= prevTo {
			return fmt.Errorf("curriculum topic %q overlaps previous range", t.Topic)
		}
		prevTo = t.To
	}
	return nil
}
