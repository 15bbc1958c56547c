package importer

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/sysu-ecnc-dev/av-dispatch/backend/internal/domain"
	"gopkg.in/yaml.v3"
)

// Source 是一个 ICS 订阅源
type Source struct {
	ID          string           `yaml:"id"`
	URL         string           `yaml:"url"`
	DefaultType domain.EventType `yaml:"defaultType"` // CATEGORIES 无法识别时使用的活动类型
	Rooms       []string         `yaml:"rooms"`       // 为空表示不限制教室
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseSources(data)
}

func parseSources(data []byte) ([]Source, error) {
	file := sourcesFile{}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("解析订阅源文件失败: %w", err)
	}

	seen := make(map[string]bool)
	for i := range file.Sources {
		src := &file.Sources[i]
		if src.ID == "" {
			return nil, fmt.Errorf("第 %d 个订阅源缺少 id", i+1)
		}
		if src.URL == "" {
			return nil, fmt.Errorf("订阅源 %s 缺少 url", src.ID)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("订阅源 id %s 重复", src.ID)
		}
		seen[src.ID] = true

		if src.DefaultType == "" {
			src.DefaultType = domain.EventTypeOther
		}
		if !slices.Contains(domain.EventTypes, src.DefaultType) {
			return nil, fmt.Errorf("订阅源 %s 的默认类型 %s 无效", src.ID, src.DefaultType)
		}
	}

	if len(file.Sources) == 0 {
		return nil, errors.New("没有配置任何订阅源")
	}

	return file.Sources, nil
}
