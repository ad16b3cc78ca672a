package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJobs(t *testing.T) {
	input := "title,description,skills,deadline,apply_url\n" +
		"Go Developer,\"Build APIs, run services\",\"go; docker\",2026-12-01,https://example.com/apply\n" +
		",,,,\n" +
		"Data Engineer,Pipelines,\"python, sql\"\n"

	jobs, err := ReadJobs(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, Job{
		ID:          "0",
		Title:       "Go Developer",
		Description: "Build APIs, run services",
		Skills:      []string{"go", "docker"},
		Deadline:    "2026-12-01",
		ApplyURL:    "https://example.com/apply",
	}, jobs[0])
	assert.Equal(t, "1", jobs[1].ID)
	assert.Equal(t, []string{"python", "sql"}, jobs[1].Skills)
}

func TestReadJobsExplicitIDs(t *testing.T) {
	jobs, err := ReadJobs(strings.NewReader("id,title\nj-7,Backend\nj-9,Frontend\n"))
	require.NoError(t, err)

	job, ok := jobs.FindByID("j-9")
	require.True(t, ok)
	assert.Equal(t, "Frontend", job.Title)

	_, ok = jobs.FindByID("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"j-7: Backend", "j-9: Frontend"}, jobs.Titles())
}

func TestReadJobsErrors(t *testing.T) {
	_, err := ReadJobs(strings.NewReader("name\nBackend\n"))
	assert.Error(t, err)

	_, err = ReadJobs(strings.NewReader("id,title\n1,A\n1,B\n"))
	assert.ErrorContains(t, err, "duplicate job id")
}

func TestJobText(t *testing.T) {
	job := Job{Title: "Go Developer", Description: "Build APIs", Skills: []string{"go", "docker"}}
	assert.Equal(t, "Go Developer\n\nBuild APIs\n\nSkills: go, docker", job.Text())
	assert.Equal(t, "", Job{}.Text())
}

func TestLoadResumesDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bob.txt"), []byte("Go and Docker"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.md"), []byte("Python and SQL"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte{0x89}, 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	candidates, err := LoadResumesDir(dir)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, Candidate{ID: "alice", Name: "alice", Text: "Python and SQL"}, candidates[0])
	assert.Equal(t, "bob", candidates[1].ID)

	_, err = LoadResumesDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadJobsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,skills\nSRE,kubernetes\n"), 0o600))

	jobs, err := LoadJobsCSV(path)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"kubernetes"}, jobs[0].Skills)
}
