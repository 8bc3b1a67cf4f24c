package entity

import (
	"context"
	"fmt"
	"time"
)

type JobKind int

const (
	JobKindModPackage JobKind = iota + 1
	JobKindMirror
)

func (k JobKind) String() string {
	switch k {
	case JobKindModPackage:
		return "gamebanana"
	case JobKindMirror:
		return "fastdl"
	}

	return fmt.Sprintf("unknown(%d)", int(k))
}

// Notifier receives human-readable progress lines for a job, usually a chat channel.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Job is one queued ingest request. Implemented by *ModPackageJob and *MirrorJob only.
type Job interface {
	Meta() *JobMeta
	Kind() JobKind
	Title() string
}

type JobMeta struct {
	ID         string
	Requester  string // Mention of the user who submitted the request
	Sink       Notifier
	EnqueuedAt time.Time
}

func (m *JobMeta) Meta() *JobMeta {
	return m
}

// ModPackage describes the first downloadable file of a Gamebanana item.
type ModPackage struct {
	DisplayName   string
	FileName      string
	FileSizeBytes int64
	DownloadURL   string
}

type ModPackageJob struct {
	JobMeta
	ModPackage
}

func (j *ModPackageJob) Kind() JobKind {
	return JobKindModPackage
}

func (j *ModPackageJob) Title() string {
	return j.DisplayName
}

// MirrorProbe is the result of checking the FastDL mirror for a map.
type MirrorProbe struct {
	Found        bool
	HasAuxiliary bool
}

type MirrorJob struct {
	JobMeta
	MapName          string
	HasAuxiliaryFile bool
}

func (j *MirrorJob) Kind() JobKind {
	return JobKindMirror
}

func (j *MirrorJob) Title() string {
	return j.MapName
}
