package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jimyag/aggravator/pkg/fetch"
	"github.com/jimyag/aggravator/pkg/inventory"
	"github.com/jimyag/aggravator/pkg/logger"
)

// Options CLI 配置，进程启动时解析一次后只读传递
// 优先级: 命令行参数 > 环境变量 > 符号链接推断（env）/ 默认路径（uri）
type Options struct {
	Env           string // 环境名
	URI           string // 根配置的 URI
	VaultPassFile string // vault 密码文件，/dev/null 表示禁用解密
	OutputFormat  string // 输出格式 yaml|json

	ListFlag bool   // --list 输出完整 inventory
	Host     string // --host 查询单个主机（上游未实现，输出空映射）
	LinkDir  string // --createlinks 在目录下创建每个环境的符号链接
	ShowFlag bool   // --show 列出环境（指定环境时列出组）
	TreeFlag bool   // --tree 输出环境的原始引用树，不做合并
}

func main() {
	logger.Init(nil)

	var opts Options

	rootCmd := &cobra.Command{
		Use:   "aggravator",
		Short: "Ansible file based dynamic inventory script",
		Long: "Aggravator reads a configuration file either locally or fetched via HTTP and " +
			"outputs a data structure describing the inventory by merging the files as listed " +
			"in the config file. Files can be in either YAML or JSON format.",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			resolveOptions(cmd, &opts)
			os.Exit(run(&opts))
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.Env, "env", "", "specify the platform name to pull inventory for")
	flags.StringVar(&opts.URI, "uri", "", "specify the URI to query for inventory config file, supports file:// and http(s)://")
	flags.StringVar(&opts.VaultPassFile, "vault-password-file", "", "vault password file, if set to /dev/null secret decryption will be disabled")
	flags.StringVar(&opts.OutputFormat, "output-format", "", "specify the output format (yaml or json)")
	flags.BoolVar(&opts.ListFlag, "list", false, "print inventory information as a JSON object")
	flags.StringVar(&opts.Host, "host", "", "retrieve host variables (not implemented)")
	flags.StringVar(&opts.LinkDir, "createlinks", "", "create symlinks in DIRECTORY to the script for each platform name retrieved")
	flags.BoolVar(&opts.ShowFlag, "show", false, "output a list of upstream environments (or groups if environment is set)")
	flags.BoolVar(&opts.TreeFlag, "tree", false, "output a tree of what files will be loaded for an environment")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveOptions 合并命令行参数、环境变量和推断出的默认值
func resolveOptions(cmd *cobra.Command, opts *Options) {
	v := viper.New()
	v.BindEnv("env", "INVENTORY_ENV")
	v.BindEnv("uri", "INVENTORY_URI")
	v.BindEnv("vault-password-file", "VAULT_PASSWORD_FILE")
	v.BindEnv("output-format", "INVENTORY_FORMAT")

	v.SetDefault("env", environmentFromSymlink())
	v.SetDefault("uri", defaultConfigURI())
	v.SetDefault("vault-password-file", defaultVaultPassFile())
	v.SetDefault("output-format", "yaml")

	if !cmd.Flags().Changed("env") {
		opts.Env = v.GetString("env")
	}
	if !cmd.Flags().Changed("uri") {
		opts.URI = v.GetString("uri")
	}
	if !cmd.Flags().Changed("vault-password-file") {
		opts.VaultPassFile = v.GetString("vault-password-file")
	}
	if !cmd.Flags().Changed("output-format") {
		opts.OutputFormat = v.GetString("output-format")
	}
}

// environmentFromSymlink 通过符号链接调用时，用链接名作为环境名
func environmentFromSymlink() string {
	if len(os.Args) == 0 || os.Args[0] == "" {
		return ""
	}
	info, err := os.Lstat(os.Args[0])
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return ""
	}
	return filepath.Base(os.Args[0])
}

// defaultConfigURI 在约定位置查找根配置文件
func defaultConfigURI() string {
	checkPaths := []string{
		"/etc/aggravator/config.yaml",
		"/usr/local/etc/aggravator/config.yaml",
	}
	if exe, err := os.Executable(); err == nil {
		selfEtc := filepath.Join(filepath.Dir(exe), "..", "etc", "config.yaml")
		checkPaths = append([]string{selfEtc}, checkPaths...)
	}

	for _, p := range checkPaths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// defaultVaultPassFile 默认的 vault 密码文件路径
func defaultVaultPassFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vault_pass.txt")
}

// run 执行选定的模式，返回进程退出码
func run(opts *Options) int {
	if opts.URI == "" {
		fmt.Fprintln(os.Stderr, "Error: Missing inventory URI, use --uri or `export INVENTORY_URI`")
		return 1
	}

	fetcher := fetch.NewFetcher()

	// createlinks 和 show/tree 不需要解密片段
	if opts.LinkDir != "" {
		return runCreateLinks(opts, fetcher)
	}

	if opts.Env == "" {
		switch {
		case opts.ShowFlag:
			return runShowEnvironments(opts, fetcher)
		case opts.TreeFlag:
			return runTree(opts, fetcher)
		default:
			fmt.Fprintln(os.Stderr, "Error: Missing environment, use --env or `export INVENTORY_ENV`")
			return 1
		}
	}

	switch {
	case opts.ShowFlag:
		return runShowGroups(opts, fetcher)
	case opts.TreeFlag:
		return runTree(opts, fetcher)
	case opts.ListFlag:
		return runList(opts, fetcher)
	case opts.Host != "":
		// 上游未实现按主机查询，_meta 已随 --list 返回
		return output(map[string]interface{}{}, opts.OutputFormat)
	default:
		fmt.Fprintln(os.Stderr, "Error: Missing parameter (--list or --host)?")
		return 1
	}
}

// runCreateLinks 为每个环境创建符号链接，退出码是失败的链接数
func runCreateLinks(opts *Options, fetcher *fetch.Fetcher) int {
	builder, err := inventory.NewBuilder(opts.URI, fetcher)
	if err != nil {
		logger.Errorf("failed to load inventory config: %v", err)
		return 1
	}

	exe, err := os.Executable()
	if err != nil {
		logger.Errorf("failed to locate executable: %v", err)
		return 1
	}

	return inventory.CreateLinks(builder.Environments(), opts.LinkDir, exe)
}

// runShowEnvironments 列出上游定义的环境
func runShowEnvironments(opts *Options, fetcher *fetch.Fetcher) int {
	builder, err := inventory.NewBuilder(opts.URI, fetcher)
	if err != nil {
		logger.Errorf("failed to load inventory config: %v", err)
		return 1
	}

	fmt.Println("Upstream environments:")
	fmt.Println(strings.Join(builder.Environments(), "\n"))
	return 0
}

// runShowGroups 列出一个环境生成后的顶层组
func runShowGroups(opts *Options, fetcher *fetch.Fetcher) int {
	builder, err := inventory.NewBuilder(opts.URI, fetcher)
	if err != nil {
		logger.Errorf("failed to load inventory config: %v", err)
		return 1
	}

	groups, err := builder.Groups(opts.Env)
	if err != nil {
		logger.Errorf("failed to generate inventory: %v", err)
		return 1
	}

	fmt.Println(strings.Join(groups, "\n"))
	return 0
}

// runTree 输出环境的原始引用树
func runTree(opts *Options, fetcher *fetch.Fetcher) int {
	builder, err := inventory.NewBuilder(opts.URI, fetcher)
	if err != nil {
		logger.Errorf("failed to load inventory config: %v", err)
		return 1
	}

	data, err := yaml.Marshal(builder.EnvironmentsTree(opts.Env))
	if err != nil {
		logger.Errorf("failed to serialize tree: %v", err)
		return 1
	}
	fmt.Print(string(data))
	return 0
}

// runList 生成并输出完整的 inventory 文档
func runList(opts *Options, fetcher *fetch.Fetcher) int {
	if err := loadVaultPassword(opts, fetcher); err != nil {
		logger.Errorf("failed to read vault password file: %v", err)
		return 1
	}

	builder, err := inventory.NewBuilder(opts.URI, fetcher)
	if err != nil {
		logger.Errorf("failed to load inventory config: %v", err)
		return 1
	}

	inv, err := builder.Generate(opts.Env)
	if err != nil {
		logger.Errorf("failed to generate inventory: %v", err)
		return 1
	}

	return output(inv, opts.OutputFormat)
}

// loadVaultPassword 读取 vault 密码文件
// 文件为 /dev/null 时保持禁用，加密片段按空映射处理
func loadVaultPassword(opts *Options, fetcher *fetch.Fetcher) error {
	if opts.VaultPassFile == "" || opts.VaultPassFile == os.DevNull {
		return nil
	}

	data, err := os.ReadFile(opts.VaultPassFile)
	if err != nil {
		if os.IsNotExist(err) {
			// 默认路径下没有密码文件不算错误，只是禁用解密
			logger.Debugf("vault password file not found, decryption disabled: %s", opts.VaultPassFile)
			return nil
		}
		return err
	}

	fetcher.SetVaultPassword(strings.TrimSpace(string(data)))
	return nil
}

// output 按选定格式输出数据
func output(data interface{}, format string) int {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		text, err := yaml.Marshal(data)
		if err != nil {
			logger.Errorf("failed to serialize output: %v", err)
			return 1
		}
		fmt.Print(string(text))
	case "json":
		text, err := json.Marshal(data)
		if err != nil {
			logger.Errorf("failed to serialize output: %v", err)
			return 1
		}
		fmt.Println(string(text))
	default:
		logger.Errorf("unsupported output data type: %s", format)
		return 1
	}
	return 0
}
