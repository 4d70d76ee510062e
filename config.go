package stream_archiver

import (
	"path/filepath"
	"strings"
	"text/template"

	"github.com/alanbriolat/stream-archiver/util"
)

type NamingConfig interface {
	GetTargetName(record *VideoRecord) (string, error)
	GetTargetPath(record *VideoRecord) (string, error)
	TargetDir() string
}

type namingConfig struct {
	targetDir          string
	targetFileTemplate *template.Template
}

func NewNamingConfig(targetDir string) NamingConfig {
	return &namingConfig{
		targetDir:          targetDir,
		targetFileTemplate: template.Must(template.New("target_file").Parse("{{.Date}} - {{.Title}}.mp4")),
	}
}

func (c *namingConfig) GetTargetName(record *VideoRecord) (string, error) {
	title := util.SanitizeFilename(record.Title)
	if title == "" {
		title = record.UUID
	}
	args := targetFileTemplateArgs{
		Date:  record.Date,
		Title: title,
	}
	builder := strings.Builder{}
	if err := c.targetFileTemplate.Execute(&builder, &args); err != nil {
		return "", err
	} else {
		return builder.String(), nil
	}
}

func (c *namingConfig) GetTargetPath(record *VideoRecord) (string, error) {
	if name, err := c.GetTargetName(record); err != nil {
		return "", err
	} else {
		return filepath.Join(c.targetDir, name), nil
	}
}

func (c *namingConfig) TargetDir() string {
	return c.targetDir
}

type targetFileTemplateArgs struct {
	Date  string
	Title string
}
