package mitre

import "shrike/core"

// Builtin returns a dictionary preloaded with the technique identifiers
// the shipped signature set references.
func Builtin() *Dictionary {
	d := New()
	for id, desc := range builtinDescriptions {
		d.descriptions[id] = desc
	}
	return d
}

var builtinDescriptions = map[string]core.TTPDescription{
	"T1012": {
		Short: "Query Registry",
		Long:  "Adversaries may interact with the Windows Registry to gather information about the system, configuration, and installed software.",
	},
	"T1027": {
		Short: "Obfuscated Files or Information",
		Long:  "Adversaries may attempt to make an executable or file difficult to discover or analyze by encrypting, encoding, or otherwise obfuscating its contents.",
	},
	"T1036": {
		Short: "Masquerading",
		Long:  "Adversaries may attempt to manipulate features of their artifacts to make them appear legitimate or benign.",
	},
	"T1055": {
		Short: "Process Injection",
		Long:  "Adversaries may inject code into processes in order to evade process-based defenses as well as possibly elevate privileges.",
	},
	"T1056": {
		Short: "Input Capture",
		Long:  "Adversaries may use methods of capturing user input to obtain credentials or collect information.",
	},
	"T1057": {
		Short: "Process Discovery",
		Long:  "Adversaries may attempt to get information about running processes on a system.",
	},
	"T1071": {
		Short: "Application Layer Protocol",
		Long:  "Adversaries may communicate using application layer protocols to avoid detection by blending in with existing traffic.",
	},
	"T1082": {
		Short: "System Information Discovery",
		Long:  "An adversary may attempt to get detailed information about the operating system and hardware.",
	},
	"T1083": {
		Short: "File and Directory Discovery",
		Long:  "Adversaries may enumerate files and directories or search in specific locations for certain information.",
	},
	"T1095": {
		Short: "Non-Application Layer Protocol",
		Long:  "Adversaries may use a non-application layer protocol for communication between host and C2 server.",
	},
	"T1105": {
		Short: "Ingress Tool Transfer",
		Long:  "Adversaries may transfer tools or other files from an external system into a compromised environment.",
	},
	"T1112": {
		Short: "Modify Registry",
		Long:  "Adversaries may interact with the Windows Registry to hide configuration information, remove information as part of cleaning up, or as part of other techniques.",
	},
	"T1113": {
		Short: "Screen Capture",
		Long:  "Adversaries may attempt to take screen captures of the desktop to gather information over the course of an operation.",
	},
	"T1129": {
		Short: "Shared Modules",
		Long:  "Adversaries may execute malicious payloads via loading shared modules.",
	},
	"T1140": {
		Short: "Deobfuscate/Decode Files or Information",
		Long:  "Adversaries may use obfuscated files or information to hide artifacts of an intrusion from analysis.",
	},
	"T1219": {
		Short: "Remote Access Software",
		Long:  "An adversary may use legitimate desktop support and remote access software to establish an interactive command and control channel to target systems.",
	},
	"T1486": {
		Short: "Data Encrypted for Impact",
		Long:  "Adversaries may encrypt data on target systems or on large numbers of systems in a network to interrupt availability.",
	},
	"T1497": {
		Short: "Virtualization/Sandbox Evasion",
		Long:  "Adversaries may employ various means to detect and avoid virtualization and analysis environments.",
	},
	"T1547": {
		Short: "Boot or Logon Autostart Execution",
		Long:  "Adversaries may configure system settings to automatically execute a program during system boot or logon.",
	},
	"T1573": {
		Short: "Encrypted Channel",
		Long:  "Adversaries may employ a known encryption algorithm to conceal command and control traffic.",
	},
	"T1622": {
		Short: "Debugger Evasion",
		Long:  "Adversaries may employ various means to detect and avoid debuggers, which are used by defenders to analyze malware.",
	},
}
