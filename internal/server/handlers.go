package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spigell/hh-matcher/internal/catalog"
	"github.com/spigell/hh-matcher/internal/courses"
	"github.com/spigell/hh-matcher/internal/matching"
	"github.com/spigell/hh-matcher/internal/ranker"
)

type scoreRequest struct {
	JobID      string              `json:"job_id"`
	Job        *catalog.Job        `json:"job"`
	Candidates []catalog.Candidate `json:"candidates"`
}

type matchRequest struct {
	Candidate catalog.Candidate `json:"candidate"`
	JobIDs    []string          `json:"job_ids"`
	Jobs      catalog.Jobs      `json:"jobs"`
}

type gapRequest struct {
	Candidate catalog.Candidate `json:"candidate"`
	JobID     string            `json:"job_id"`
	Job       *catalog.Job      `json:"job"`
	TopN      int               `json:"top_n"`
}

type coursesRequest struct {
	Skills []string `json:"skills"`
	TopN   int      `json:"top_n"`
}

type warmupRequest struct {
	Texts   []string `json:"texts"`
	ModelID string   `json:"model_id"`
}

type resultsResponse struct {
	Count   int                    `json:"count"`
	Results []matching.MatchResult `json:"results"`
}

type gapResponse struct {
	ranker.GapReport
	Courses []courses.Recommendation `json:"courses"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
		"time":   time.Now(),
	})
}

func (s *Server) stages(c *fiber.Ctx) error {
	return c.JSON(s.ranker.Describe())
}

func (s *Server) score(c *fiber.Ctx) error {
	var req scoreRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request payload")
	}
	if len(req.Candidates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "candidates are required")
	}

	job, err := s.resolveJob(req.JobID, req.Job)
	if err != nil {
		return err
	}

	results, err := s.ranker.ScoreCandidates(c.UserContext(), job, req.Candidates)
	if err != nil {
		return err
	}
	return c.JSON(resultsResponse{Count: len(results), Results: results})
}

func (s *Server) match(c *fiber.Ctx) error {
	var req matchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request payload")
	}
	if strings.TrimSpace(req.Candidate.Text) == "" && len(req.Candidate.Skills) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "candidate text or skills are required")
	}
	if req.Candidate.ID == "" {
		req.Candidate.ID = "candidate"
	}

	jobs := req.Jobs
	if len(jobs) == 0 {
		var err error
		if jobs, err = s.selectJobs(req.JobIDs); err != nil {
			return err
		}
	}
	if len(jobs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no jobs to match against")
	}

	results, err := s.ranker.MatchJobs(c.UserContext(), req.Candidate, jobs)
	if err != nil {
		return err
	}
	return c.JSON(resultsResponse{Count: len(results), Results: results})
}

func (s *Server) gap(c *fiber.Ctx) error {
	var req gapRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request payload")
	}

	job, err := s.resolveJob(req.JobID, req.Job)
	if err != nil {
		return err
	}

	report := s.ranker.ComputeGap(c.UserContext(), req.Candidate, job)
	return c.JSON(gapResponse{
		GapReport: report,
		Courses:   s.ranker.RecommendCourses(report.Missing, req.TopN),
	})
}

func (s *Server) courses(c *fiber.Ctx) error {
	var req coursesRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request payload")
	}
	if len(req.Skills) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "skills are required")
	}

	return c.JSON(fiber.Map{
		"courses": s.ranker.RecommendCourses(req.Skills, req.TopN),
	})
}

func (s *Server) warmup(c *fiber.Ctx) error {
	var req warmupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request payload")
		}
	}

	if len(req.Texts) == 0 {
		report, err := s.ranker.WarmupJobs(c.UserContext(), s.jobs)
		if err != nil {
			return err
		}
		return c.JSON(report)
	}

	report, err := s.ranker.Warmup(c.UserContext(), req.Texts, req.ModelID)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) resolveJob(id string, inline *catalog.Job) (catalog.Job, error) {
	if inline != nil {
		if inline.ID == "" {
			inline.ID = "job"
		}
		return *inline, nil
	}
	if id == "" {
		return catalog.Job{}, fiber.NewError(fiber.StatusBadRequest, "job or job_id is required")
	}
	job, ok := s.jobs.FindByID(id)
	if !ok {
		return catalog.Job{}, fiber.NewError(fiber.StatusNotFound, "job "+id+" not found")
	}
	return job, nil
}

func (s *Server) selectJobs(ids []string) (catalog.Jobs, error) {
	if len(ids) == 0 {
		return s.jobs, nil
	}
	jobs := make(catalog.Jobs, 0, len(ids))
	for _, id := range ids {
		job, ok := s.jobs.FindByID(id)
		if !ok {
			return nil, fiber.NewError(fiber.StatusNotFound, "job "+id+" not found")
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
