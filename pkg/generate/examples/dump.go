package main

import (
	"fmt"
	"os"
	"path"
	"runtime"

	"sigs.k8s.io/yaml"

	"github.com/dwhkit/warehouse-bootstrap/pkg/generate/examples/examples"
)

func main() {
	err := dumpToExamples(examples.TutorialStackName+".yaml", examples.TutorialStack())
	if err != nil {
		panic(err)
	}
}

func dumpToExamples(name string, compose *examples.Compose) error {
	content := []byte(`# THESE EXAMPLES ARE GENERATED!
# Use them as a template for your deployment, but do not commit manual changes to these files.
---
`)

	raw, err := yaml.Marshal(compose)
	if err != nil {
		return err
	}

	content = append(content, raw...)

	_, filename, _, _ := runtime.Caller(1)

	dest := path.Join(path.Dir(filename), "../../..", "deploy", name)
	fmt.Printf("example compose file written to %s\n", dest)

	err = os.WriteFile(dest, content, 0600)
	if err != nil {
		return err
	}

	return nil
}
