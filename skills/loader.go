package skills

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var frontmatterRe = regexp.MustCompile(`(?s)^---\s*\n(.*?)\n---\s*\n`)

type frontmatter struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Stage       string `yaml:"stage"`
	Description string `yaml:"description"`
}

// parseFrontmatter splits YAML frontmatter from the body. Broken YAML yields
// empty metadata; a file without frontmatter is all body.
func parseFrontmatter(content string) (frontmatter, string) {
	loc := frontmatterRe.FindStringSubmatchIndex(content)
	if loc == nil {
		return frontmatter{}, content
	}
	var meta frontmatter
	if err := yaml.Unmarshal([]byte(content[loc[2]:loc[3]]), &meta); err != nil {
		meta = frontmatter{}
	}
	return meta, strings.TrimSpace(content[loc[1]:])
}

// LoadFile reads one skill file.
func LoadFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}
	content := string(data)
	meta, body := parseFrontmatter(content)

	id := meta.ID
	if id == "" {
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	name := meta.Name
	if name == "" {
		name = id
	}
	stage := meta.Stage
	if stage == "" {
		stage = StageCopyWrite
	}
	if body == "" {
		body = content
	}
	return NewSkill(id, name, stage, meta.Description, body)
}

// LoadDir loads every *.md under dir, recursively, in lexical order.
func LoadDir(dir string, logger *zap.Logger) []Skill {
	var paths []string
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	sort.Strings(paths)

	var out []Skill
	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			logger.Warn("skip skill file", zap.String("path", p), zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out
}

// LoadDirs loads skills from files or directories and registers them.
// Missing paths are skipped.
func LoadDirs(r *Registry, paths []string, logger *zap.Logger) []Skill {
	if logger == nil {
		logger = zap.NewNop()
	}
	var all []Skill
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			s, err := LoadFile(p)
			if err != nil {
				logger.Warn("skip skill file", zap.String("path", p), zap.Error(err))
				continue
			}
			all = append(all, s)
			continue
		}
		all = append(all, LoadDir(p, logger)...)
	}
	for _, s := range all {
		_ = r.Register(s)
	}
	logger.Info("skills loaded", zap.Int("count", len(all)))
	return all
}
