// Package config는 yaml 설정 파일과 환경 변수를 하나의 구조체로 합치는 패키지입니다.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// 설정 디렉토리 경로
const configDir = "configs"

// Source는 설정을 읽을 위치를 정의합니다.
type Source struct {
	// ServiceName 환경 변수 접두사와 기본 파일 이름으로 사용됩니다
	ServiceName string
	// Path 설정 파일 경로. 비어 있으면 configs/{APP_ENV}/{service}.yaml
	Path string
}

// Load는 설정 파일을 읽은 뒤 환경 변수 값으로 덮어써서 out에 디코딩합니다.
// out 구조체는 yaml 태그를 사용합니다. 예: BILLING_STRIPE_SECRET_KEY -> stripe.secret_key
func Load(src Source, out interface{}) error {
	v := viper.New()
	v.SetConfigType("yaml")

	// 환경 변수 바인딩 설정
	v.SetEnvPrefix(strings.ToUpper(src.ServiceName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := src.Path
	if path == "" {
		env := os.Getenv("APP_ENV")
		if env == "" {
			env = "dev" // 기본 환경은 dev
		}
		path = filepath.Join(configDir, env, src.ServiceName+".yaml")
	}
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("설정 파일 로드 실패 (%s): %w", path, err)
	}

	decode := func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
	if err := v.Unmarshal(out, decode); err != nil {
		return fmt.Errorf("설정 디코딩 실패: %w", err)
	}

	return nil
}
