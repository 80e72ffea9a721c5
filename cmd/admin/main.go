// Command curriplan-admin 运维工具：执行数据库迁移、离线导出合班组
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if err := Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
