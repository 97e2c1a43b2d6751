package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/conference-scheduler/internal/application"
	"github.com/example/conference-scheduler/internal/scheduler"
)

// programFile is the YAML document accepted by the generate command.
type programFile struct {
	Conference conferenceFile `yaml:"conference"`
	Papers     []paperFile    `yaml:"papers"`
}

type conferenceFile struct {
	ID                  string     `yaml:"id"`
	Name                string     `yaml:"name"`
	WindowStart         string     `yaml:"windowStart"`
	WindowEnd           string     `yaml:"windowEnd"`
	SlotDurationMinutes float64    `yaml:"slotDurationMinutes"`
	Rooms               []roomFile `yaml:"rooms"`
}

type roomFile struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Capacity *int   `yaml:"capacity"`
}

type paperFile struct {
	ID     string `yaml:"id"`
	Title  string `yaml:"title"`
	Status string `yaml:"status"`
	// MetadataComplete defaults to true when omitted.
	MetadataComplete *bool `yaml:"metadataComplete"`
}

func readProgramFile(path string) (programFile, error) {
	var program programFile
	data, err := os.ReadFile(path)
	if err != nil {
		return program, fmt.Errorf("入力ファイルを読み込めません: %w", err)
	}
	if err := yaml.Unmarshal(data, &program); err != nil {
		return program, fmt.Errorf("入力ファイルの形式が不正です: %s: %w", path, err)
	}
	return program, nil
}

func (c conferenceFile) toInput() (application.ConferenceInput, error) {
	start, err := parseProgramTime("conference.windowStart", c.WindowStart)
	if err != nil {
		return application.ConferenceInput{}, err
	}
	end, err := parseProgramTime("conference.windowEnd", c.WindowEnd)
	if err != nil {
		return application.ConferenceInput{}, err
	}

	rooms := make([]scheduler.Room, len(c.Rooms))
	for i, room := range c.Rooms {
		rooms[i] = scheduler.Room{ID: room.ID, Name: room.Name, Capacity: room.Capacity}
	}
	return application.ConferenceInput{
		ID:                  c.ID,
		Name:                c.Name,
		WindowStart:         start,
		WindowEnd:           end,
		SlotDurationMinutes: c.SlotDurationMinutes,
		Rooms:               rooms,
	}, nil
}

func (p programFile) paperInputs() []application.PaperInput {
	inputs := make([]application.PaperInput, len(p.Papers))
	for i, paper := range p.Papers {
		complete := true
		if paper.MetadataComplete != nil {
			complete = *paper.MetadataComplete
		}
		inputs[i] = application.PaperInput{
			ID:               paper.ID,
			Title:            paper.Title,
			Status:           scheduler.PaperStatus(strings.ToLower(strings.TrimSpace(paper.Status))),
			MetadataComplete: complete,
		}
	}
	return inputs
}

// generateInput builds an allocation request without storage. Papers keep file order.
func (p programFile) generateInput() (application.GenerateInput, error) {
	input, err := p.Conference.toInput()
	if err != nil {
		return application.GenerateInput{}, err
	}
	conference := application.Conference{
		ID:                  input.ID,
		Name:                input.Name,
		WindowStart:         input.WindowStart,
		WindowEnd:           input.WindowEnd,
		SlotDurationMinutes: input.SlotDurationMinutes,
		Rooms:               input.Rooms,
	}

	papers := make([]scheduler.Paper, 0, len(p.Papers))
	for _, paper := range p.paperInputs() {
		papers = append(papers, scheduler.Paper{
			ID:               paper.ID,
			ConferenceID:     input.ID,
			Title:            paper.Title,
			Status:           paper.Status,
			MetadataComplete: paper.MetadataComplete,
		})
	}
	return application.GenerateInput{Conference: conference, Papers: papers}, nil
}

func (p programFile) titles() map[string]string {
	titles := make(map[string]string, len(p.Papers))
	for _, paper := range p.Papers {
		titles[paper.ID] = paper.Title
	}
	return titles
}

func parseProgramTime(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s は RFC3339 形式で指定してください: %q", field, value)
	}
	return t, nil
}
