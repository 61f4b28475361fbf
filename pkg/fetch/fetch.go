package fetch

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jimyag/aggravator/pkg/errors"
	"github.com/jimyag/aggravator/pkg/logger"
	"github.com/jimyag/aggravator/pkg/vault"
)

// Format 表示片段的数据格式
type Format string

const (
	// FormatAuto 根据 URI 后缀推断格式
	FormatAuto Format = ""
	// FormatYAML YAML 格式
	FormatYAML Format = "yaml"
	// FormatJSON JSON 格式
	FormatJSON Format = "json"
)

// ParseFormat 把配置中的格式名转换为 Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "":
		return FormatAuto, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatAuto, errors.NewUnsupportedFormatError("", name)
	}
}

// defaultTimeout 远程获取的超时上限，合并流程不允许无限阻塞
const defaultTimeout = 30 * time.Second

// Fetcher 负责获取并解析配置片段
// 同一次构建中的所有片段共用一个 Fetcher（以及它的 HTTP 连接池）
type Fetcher struct {
	client        *http.Client
	vaultPassword string
	vaultEnabled  bool
}

// NewFetcher 创建一个 Fetcher，vault 解密默认禁用
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: defaultTimeout},
	}
}

// SetVaultPassword 设置 vault 密码并启用解密
func (f *Fetcher) SetVaultPassword(password string) {
	f.vaultPassword = password
	f.vaultEnabled = true
}

// SetTimeout 调整远程获取的超时
func (f *Fetcher) SetTimeout(timeout time.Duration) {
	f.client.Timeout = timeout
}

// Load 获取并解析 URI 指向的片段，格式根据后缀推断
func (f *Fetcher) Load(uri string) (interface{}, error) {
	return f.LoadAs(uri, FormatAuto)
}

// LoadAs 获取并解析 URI 指向的片段
// 加密的片段在无密码时降级为空映射而不是让整次构建失败
func (f *Fetcher) LoadAs(uri string, format Format) (interface{}, error) {
	uriObj, err := url.Parse(uri)
	if err != nil {
		return nil, errors.NewParseError(uri, err)
	}

	if format == FormatAuto {
		format, err = inferFormat(uri, uriObj.Path)
		if err != nil {
			return nil, err
		}
	}

	var data []byte
	switch uriObj.Scheme {
	case "", "file":
		data, err = f.readLocal(uri, uriObj)
	case "http", "https":
		data, err = f.readRemote(uri)
	default:
		err = errors.NewUnsupportedSchemeError(uri, uriObj.Scheme)
	}
	if err != nil {
		return nil, err
	}

	if vault.IsEncrypted(data) {
		if !f.vaultEnabled {
			// 降级模式：密码被有意不提供时，加密片段按空映射处理
			logger.Warnf("vault decryption disabled, treating encrypted fragment as empty: %s", uri)
			return map[string]interface{}{}, nil
		}
		data, err = vault.Decrypt(data, f.vaultPassword)
		if err != nil {
			return nil, withURI(err, uri)
		}
	}

	return parse(uri, data, format)
}

// readLocal 读取本地文件
func (f *Fetcher) readLocal(uri string, uriObj *url.URL) ([]byte, error) {
	path := uriObj.Path
	if path == "" && uriObj.Opaque != "" {
		path = uriObj.Opaque
	}
	if path == "" {
		path = uri
	}

	// 支持 ~ 展开，与本地路径习惯保持一致
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(uri)
		}
		return nil, errors.NewRetrievalFailedError(uri, err)
	}
	return data, nil
}

// readRemote 通过 HTTP(S) 获取数据
// 404 与其他非 2xx 状态区分为不同的错误类型
func (f *Fetcher) readRemote(uri string) ([]byte, error) {
	resp, err := f.client.Get(uri)
	if err != nil {
		return nil, errors.NewRetrievalFailedError(uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.NewNotFoundError(uri)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewRetrievalFailedError(uri, fmt.Errorf("unexpected status: %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewRetrievalFailedError(uri, err)
	}
	return data, nil
}

// inferFormat 根据路径后缀推断格式
func inferFormat(uri, path string) (Format, error) {
	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		return FormatYAML, nil
	case strings.HasSuffix(path, ".json"):
		return FormatJSON, nil
	default:
		return FormatAuto, errors.NewUnsupportedFormatError(uri, filepath.Ext(path))
	}
}

// parse 把原始字节反序列化为通用树
func parse(uri string, data []byte, format Format) (interface{}, error) {
	var out interface{}
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &out); err != nil {
			return nil, errors.NewParseError(uri, err)
		}
	case FormatJSON:
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, errors.NewParseError(uri, err)
		}
	default:
		return nil, errors.NewUnsupportedFormatError(uri, string(format))
	}

	// 空文档归一化为空映射，便于合并
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

// withURI 给分类错误补上来源 URI
func withURI(err error, uri string) error {
	var invErr *errors.InventoryError
	if stderrors.As(err, &invErr) && invErr.URI == "" {
		invErr.URI = uri
	}
	return err
}
