package steps

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"dubflow/internal/artifacts"
	"dubflow/internal/logging"
	"dubflow/internal/services"
	"dubflow/internal/storage"
	"dubflow/internal/task"
	"dubflow/internal/workspace"
)

// platformDomains maps URL substrings to platform names, checked in order.
var platformDomains = []struct {
	fragment string
	platform string
}{
	{"douyin.com", "douyin"},
	{"iesdouyin.com", "douyin"},
	{"tiktok.com", "tiktok"},
	{"kuaishou.com", "kuaishou"},
	{"xiaohongshu.com", "xiaohongshu"},
	{"xhslink.com", "xiaohongshu"},
	{"bilibili.com", "bilibili"},
	{"b23.tv", "bilibili"},
}

// Parse validates the source link, detects the platform, resolves the share
// link to a direct media URL, and downloads the raw video.
type Parse struct {
	resolver Resolver
	fetcher  Fetcher
	media    MediaToolkit
	store    storage.Service
	ws       *workspace.Workspace
	logger   *slog.Logger
}

// NewParse constructs the parse step handler.
func NewParse(resolver Resolver, fetcher Fetcher, media MediaToolkit, store storage.Service, ws *workspace.Workspace, logger *slog.Logger) *Parse {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Parse{resolver: resolver, fetcher: fetcher, media: media, store: store, ws: ws, logger: logger}
}

// Step reports the stage this handler implements.
func (p *Parse) Step() task.Step { return task.StepParse }

// Run executes the parse stage.
func (p *Parse) Run(ctx context.Context, t *task.Task) (Result, error) {
	link := strings.TrimSpace(t.SourceURL)
	if link == "" {
		return Result{}, services.Wrap(services.ErrValidation, "parse", "validate link", "source url is empty", nil)
	}
	parsed, err := url.Parse(link)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return Result{}, services.Wrap(services.ErrValidation, "parse", "validate link",
			fmt.Sprintf("source url %q is not a valid http(s) link", link), err)
	}

	platform := DetectPlatform(link, t.Platform)
	if platform == "" {
		return Result{}, services.Wrap(services.ErrValidation, "parse", "detect platform",
			fmt.Sprintf("unrecognized platform for %q", link), nil)
	}
	t.Platform = platform

	media, err := p.resolver.Resolve(ctx, link)
	if err != nil {
		return Result{}, err
	}
	if t.Title == "" && media.Title != "" {
		t.Title = media.Title
	}

	if err := p.ws.EnsureTaskDirs(t.ID); err != nil {
		return Result{}, services.Wrap(services.ErrFatal, "parse", "prepare workspace", "", err)
	}
	rawPath := p.ws.RawPath(t.ID)
	if err := p.fetcher.Fetch(ctx, media.PlayURL, rawPath); err != nil {
		return Result{}, err
	}
	t.RawPath = rawPath

	if seconds, err := p.media.ProbeDuration(ctx, rawPath); err == nil {
		t.DurationSeconds = seconds
	} else {
		p.logger.WarnContext(ctx, "duration probe failed",
			logging.String(logging.FieldTaskID, t.ID), logging.Error(err))
	}

	key := artifacts.Build(t.Tenant, t.Project, t.ID, artifacts.RawVideo)
	if err := storage.UploadFile(ctx, p.store, key, rawPath); err != nil {
		return Result{}, services.Wrap(services.ErrProvider, "parse", "upload raw media", "", err)
	}

	return Result{
		ArtifactKey: key,
		Metadata: map[string]string{
			"platform": platform,
			"duration": strconv.FormatFloat(t.DurationSeconds, 'f', 2, 64),
		},
	}, nil
}

// DetectPlatform applies the fixed precedence: explicit hint, then domain
// substring match. An empty result means the platform is unknown.
func DetectPlatform(link, hint string) string {
	if hint = strings.TrimSpace(strings.ToLower(hint)); hint != "" {
		return hint
	}
	lowered := strings.ToLower(link)
	for _, candidate := range platformDomains {
		if strings.Contains(lowered, candidate.fragment) {
			return candidate.platform
		}
	}
	return ""
}
