/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/killallgit/trackreview-api/cmd"

// @title           Track Review API
// @version         1.0.0
// @description     Review multi-object tracking output frame by frame and correct identity switches
// @contact.name    API Support
// @contact.url     https://github.com/killallgit/trackreview-api
// @license.name    MIT
// @license.url     https://opensource.org/licenses/MIT
// @host            localhost:8080
// @BasePath        /
// @schemes         http https
func main() {
	cmd.Execute()
}
