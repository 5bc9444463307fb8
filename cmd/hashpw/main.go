// Command hashpw prints a bcrypt hash for inserting a staff account by hand.
//
//	echo -n 'secret' | hashpw
//	hashpw -password secret
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"sms-gateway-dashboard/internal/services"

	"golang.org/x/crypto/bcrypt"
)

func main() {
	password := flag.String("password", "", "password to hash; read from stdin when empty")
	cost := flag.Int("cost", services.BcryptCost, "bcrypt cost")
	flag.Parse()

	hash, err := run(*password, *cost, os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

func run(password string, cost int, stdin io.Reader) (string, error) {
	if password == "" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if len(password) < services.MinPasswordLength {
		return "", services.ErrInvalidPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
