package fetch

import (
	"net/url"
	"path"
	"strings"

	"github.com/jimyag/aggravator/pkg/errors"
)

// supportedScheme 判断 scheme 是否受支持
// 空 scheme 表示相对引用
func supportedScheme(scheme string) bool {
	switch scheme {
	case "", "file", "http", "https":
		return true
	default:
		return false
	}
}

// Resolve 把一个可能是相对的引用解析为可获取的绝对 URI
// 规则:
//   - 引用无 scheme 时，总是相对 base 解析（RFC 3986 相对解析）
//   - 引用带 file/http/https scheme 且路径是绝对路径（以 / 开头）时原样使用
//   - 引用带受支持 scheme 但路径是相对路径时，其路径部分相对 base 解析
//   - 其他 scheme 返回 UnsupportedScheme 错误
func Resolve(base, ref string) (string, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", errors.NewParseError(ref, err)
	}
	if !supportedScheme(refURL.Scheme) {
		return "", errors.NewUnsupportedSchemeError(ref, refURL.Scheme)
	}

	// "file:relative.yml" 这类无 // 的写法会被解析进 Opaque
	refPath := refURL.Path
	if refPath == "" && refURL.Opaque != "" {
		refPath = refURL.Opaque
	}

	if refURL.Scheme != "" && strings.HasPrefix(refPath, "/") {
		// 绝对路径，原样获取
		return ref, nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", errors.NewParseError(base, err)
	}

	// base 是不带 scheme 的本地路径时做纯路径拼接，
	// url.ResolveReference 会把相对 base 的结果绝对化
	if baseURL.Scheme == "" {
		if strings.HasPrefix(refPath, "/") {
			return refPath, nil
		}
		return path.Join(path.Dir(baseURL.Path), refPath), nil
	}

	rel := &url.URL{Path: refPath, RawQuery: refURL.RawQuery}
	return baseURL.ResolveReference(rel).String(), nil
}
