package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadInto 加载多环境配置并解码到 out。
// 加载顺序: base.yaml -> <env>.yaml -> secrets.env 占位符替换。
// out 必须是指向带 yaml tag 结构体的指针，后加载的文件覆盖先加载的。
func LoadInto(env, configDir string, out any) error {
	if configDir == "" {
		configDir = "config"
	}

	if err := decodeYAMLFile(filepath.Join(configDir, "base.yaml"), out, true); err != nil {
		return fmt.Errorf("failed to load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		envFile := filepath.Join(configDir, fmt.Sprintf("%s.yaml", env))
		if err := decodeYAMLFile(envFile, out, false); err != nil {
			return fmt.Errorf("failed to load %s.yaml: %w", env, err)
		}
	}

	return nil
}

// decodeYAMLFile 读取文件、替换 ${VAR} 占位符后解码到 out。
// required=false 时文件缺失不算错误。
func decodeYAMLFile(path string, out any, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return err
	}

	expanded := os.Expand(string(data), func(key string) string {
		if v, ok := lookupSecret(filepath.Dir(path), key); ok {
			return v
		}
		return os.Getenv(key)
	})

	return yaml.Unmarshal([]byte(expanded), out)
}

var secretsCache map[string]string

// lookupSecret 从 config 目录下的 secrets.env 读取密钥（如果存在）
func lookupSecret(configDir, key string) (string, bool) {
	if secretsCache == nil {
		secretsCache = map[string]string{}
		data, err := os.ReadFile(filepath.Join(configDir, "secrets.env"))
		if err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				line = strings.TrimSpace(line)
				if line == "" || strings.HasPrefix(line, "#") {
					continue
				}
				parts := strings.SplitN(line, "=", 2)
				if len(parts) == 2 {
					v := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
					secretsCache[strings.TrimSpace(parts[0])] = v
				}
			}
		}
	}
	v, ok := secretsCache[key]
	return v, ok
}

// GetEnv 获取环境变量，如果未设置则返回默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv 获取配置环境（从环境变量 CONFIG_ENV，默认为 local）
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}
