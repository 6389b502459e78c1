// Package plugins holds the functions the chat demos can call
package plugins

import (
	"time"

	"github.com/themobileprof/kernelchat/internal/kernel"
	"github.com/themobileprof/kernelchat/internal/store"
)

// Register adds every plugin to k
func Register(k *kernel.Kernel, s store.Store, news *NewsReader) error {
	all := []kernel.Plugin{
		Custom(CustomOptions{News: news}),
		Lights(s),
		Applicants(s, time.Now),
		CustomerService(s, time.Now),
		Routing(),
	}
	for _, p := range all {
		if err := k.AddPlugin(p); err != nil {
			return err
		}
	}
	return nil
}
